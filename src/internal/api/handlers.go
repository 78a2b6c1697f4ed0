package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/maksimkurb/netstate/src/internal/engine"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// maxStateBytes caps the size of a desired state document.
const maxStateBytes = 4 << 20

// Handler manages all API endpoints and dependencies.
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a new API handler serving e.
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(DataResponse{Data: data})
}

// writeJSONData writes a successful JSON response with data.
func writeJSONData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}

// flagsFrom reads the call flags from the query string.
func flagsFrom(r *http.Request) (engine.Flags, error) {
	raw := r.URL.Query().Get("kernel_only")
	if raw == "" {
		return engine.Flags{}, nil
	}
	kernelOnly, err := strconv.ParseBool(raw)
	if err != nil {
		return engine.Flags{}, fmt.Errorf("kernel_only must be a boolean, got %q", raw)
	}
	return engine.Flags{KernelOnly: kernelOnly}, nil
}

// readState decodes the desired state document in the request body.
func readState(w http.ResponseWriter, r *http.Request) (*state.NetworkState, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStateBytes))
	if err != nil {
		return nil, errors.NewInvalidArgument("cannot read the request body", err)
	}
	return state.Parse(data)
}
