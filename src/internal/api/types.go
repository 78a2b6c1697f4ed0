package api

import (
	"github.com/maksimkurb/netstate/src/internal/diff"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// DataResponse wraps successful responses with a "data" field.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// StateResponse returns the current network state.
type StateResponse struct {
	TxnID string              `json:"txn_id"`
	State *state.NetworkState `json:"state"`
	Log   []string            `json:"log"`
}

// ApplyResponse reports a successful apply.
type ApplyResponse struct {
	TxnID     string          `json:"txn_id"`
	ChangeSet *diff.ChangeSet `json:"changes"`
	Log       []string        `json:"log"`
}

// DiffResponse previews the change-set of a desired state.
type DiffResponse struct {
	TxnID     string          `json:"txn_id"`
	ChangeSet *diff.ChangeSet `json:"changes"`
	Summary   string          `json:"summary"`
	Log       []string        `json:"log"`
}

// HealthCheckResponse returns the results of the health checks.
type HealthCheckResponse struct {
	Healthy bool                   `json:"healthy"`
	Checks  map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of one health check.
type CheckResult struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}
