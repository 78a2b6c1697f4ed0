package api

import "net/http"

// GetState returns the current network state.
// GET /api/v1/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	flags, err := flagsFrom(r)
	if err != nil {
		WriteInvalidRequest(w, err.Error())
		return
	}

	res, err := h.engine.Retrieve(r.Context(), flags)
	if err != nil {
		WriteEngineError(w, err, res.Log)
		return
	}
	writeJSONData(w, StateResponse{TxnID: res.TxnID, State: res.State, Log: res.Log})
}

// ApplyState converges the system to the desired state in the body.
// POST /api/v1/state
func (h *Handler) ApplyState(w http.ResponseWriter, r *http.Request) {
	flags, err := flagsFrom(r)
	if err != nil {
		WriteInvalidRequest(w, err.Error())
		return
	}
	desired, err := readState(w, r)
	if err != nil {
		WriteEngineError(w, err, nil)
		return
	}

	res, err := h.engine.Apply(r.Context(), desired, flags)
	if err != nil {
		WriteEngineError(w, err, res.Log)
		return
	}
	writeJSONData(w, ApplyResponse{TxnID: res.TxnID, ChangeSet: res.ChangeSet, Log: res.Log})
}

// DiffState previews the change-set of the desired state in the body.
// POST /api/v1/diff
func (h *Handler) DiffState(w http.ResponseWriter, r *http.Request) {
	flags, err := flagsFrom(r)
	if err != nil {
		WriteInvalidRequest(w, err.Error())
		return
	}
	desired, err := readState(w, r)
	if err != nil {
		WriteEngineError(w, err, nil)
		return
	}

	res, err := h.engine.Diff(r.Context(), desired, flags)
	if err != nil {
		WriteEngineError(w, err, res.Log)
		return
	}
	writeJSONData(w, DiffResponse{
		TxnID:     res.TxnID,
		ChangeSet: res.ChangeSet,
		Summary:   res.ChangeSet.String(),
		Log:       res.Log,
	})
}
