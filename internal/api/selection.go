package api

import (
	"context"
	"encoding/json"
	"net/http"

	"portalslayer/pkg/host"
	"portalslayer/pkg/selection"
)

// SelectionService evaluates injected selection events.
type SelectionService interface {
	Select(ctx context.Context, ev host.SelectionEvent) (selection.Result, error)
}

// SelectionHandler lets headless clients publish portal selections.
type SelectionHandler struct {
	svc SelectionService
}

// NewSelectionHandler creates a new SelectionHandler.
func NewSelectionHandler(svc SelectionService) *SelectionHandler {
	return &SelectionHandler{svc: svc}
}

// Handle evaluates one selection and returns the decision.
func (h *SelectionHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var ev host.SelectionEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	res, err := h.svc.Select(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
