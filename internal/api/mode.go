package api

import (
	"encoding/json"
	"net/http"

	"portalslayer/pkg/engine"
	"portalslayer/pkg/selection"
)

// ModeService is the engine surface used by ModeHandler.
type ModeService interface {
	Mode() selection.Mode
	SetDeleteMode(on bool)
	ToggleDeleteMode() selection.Mode
	Status() engine.Status
}

// ModeHandler switches between normal and delete mode.
type ModeHandler struct {
	svc ModeService
}

// NewModeHandler creates a new ModeHandler.
func NewModeHandler(svc ModeService) *ModeHandler {
	return &ModeHandler{svc: svc}
}

// ModeBody is the request and response body of the mode endpoints.
type ModeBody struct {
	Mode selection.Mode `json:"mode"`
}

// HandleGet returns the current mode.
func (h *ModeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModeBody{Mode: h.svc.Mode()})
}

// HandleSet sets the mode.
func (h *ModeHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req ModeBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !req.Mode.Valid() {
		http.Error(w, "mode must be 'normal' or 'delete'", http.StatusBadRequest)
		return
	}
	h.svc.SetDeleteMode(req.Mode == selection.ModeDelete)
	writeJSON(w, http.StatusOK, ModeBody{Mode: h.svc.Mode()})
}

// HandleToggle flips the mode.
func (h *ModeHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModeBody{Mode: h.svc.ToggleDeleteMode()})
}

// HandleStatus returns a diagnostics snapshot.
func (h *ModeHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}
