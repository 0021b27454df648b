package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"portalslayer/pkg/engine"
	"portalslayer/pkg/model"
)

// SettingsService is the engine surface used by SettingsHandler.
type SettingsService interface {
	Rules() model.RuleConfig
	SetTierRule(ctx context.Context, tier int, rule model.TierRule) error
	Factions() model.FactionFilter
	SetFactions(ctx context.Context, f model.FactionFilter)
	Options() model.BehaviorOptions
	SetOptions(ctx context.Context, o model.BehaviorOptions)
}

// SettingsHandler handles rule and option requests.
type SettingsHandler struct {
	svc SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// SettingsResponse represents the settings API response.
type SettingsResponse struct {
	Tiers           map[string]model.TierRule `json:"tiers"`
	ProcessEnl      bool                      `json:"process_enl"`
	ProcessRes      bool                      `json:"process_res"`
	ClearOnReload   bool                      `json:"clear_on_reload"`
	LinkPortalNames bool                      `json:"link_portal_names"`
	ForceNameLabel  bool                      `json:"force_name_label"`
}

// TierRuleRequest updates one tier.
type TierRuleRequest struct {
	Active *bool   `json:"active,omitempty"`
	Color  *string `json:"color,omitempty"`
}

// SettingsRequest represents the settings API request for updates.
type SettingsRequest struct {
	Tiers           map[string]TierRuleRequest `json:"tiers,omitempty"`
	ProcessEnl      *bool                      `json:"process_enl,omitempty"` // Pointer to detect false vs missing
	ProcessRes      *bool                      `json:"process_res,omitempty"`
	ClearOnReload   *bool                      `json:"clear_on_reload,omitempty"`
	LinkPortalNames *bool                      `json:"link_portal_names,omitempty"`
	ForceNameLabel  *bool                      `json:"force_name_label,omitempty"`
}

// HandleGet returns the current settings.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.response())
}

func (h *SettingsHandler) response() SettingsResponse {
	rules := h.svc.Rules()
	opts := h.svc.Options()

	tiers := make(map[string]model.TierRule, len(rules.Tiers))
	for t, rule := range rules.Tiers {
		tiers[strconv.Itoa(t)] = rule
	}
	return SettingsResponse{
		Tiers:           tiers,
		ProcessEnl:      rules.Factions.ProcessEnl,
		ProcessRes:      rules.Factions.ProcessRes,
		ClearOnReload:   opts.ClearOnReload,
		LinkPortalNames: opts.LinkToSiblingLabels,
		ForceNameLabel:  opts.ForceOwnLabel,
	}
}

// HandleSet applies a partial update. Tier changes are validated first; nothing is
// applied if any of them is invalid.
func (h *SettingsHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	var req SettingsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tiers, err := h.mergeTiers(req.Tiers)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for t, rule := range tiers {
		if err := h.svc.SetTierRule(ctx, t, rule); err != nil {
			writeError(w, err)
			return
		}
	}

	h.applyFactions(ctx, &req)
	h.applyOptions(ctx, &req)

	slog.Debug("Settings updated via API")
	writeJSON(w, http.StatusOK, h.response())
}

func (h *SettingsHandler) mergeTiers(patch map[string]TierRuleRequest) (map[int]model.TierRule, error) {
	current := h.svc.Rules()
	out := make(map[int]model.TierRule, len(patch))
	for key, p := range patch {
		t, err := strconv.Atoi(key)
		if err != nil || t < 1 || t > model.MaxTier {
			return nil, fmt.Errorf("invalid tier %q", key)
		}
		rule, _ := current.Rule(t)
		if p.Active != nil {
			rule.Active = *p.Active
		}
		if p.Color != nil {
			if !engine.ValidColor(*p.Color) {
				return nil, fmt.Errorf("tier %d: invalid color %q", t, *p.Color)
			}
			rule.Color = *p.Color
		}
		out[t] = rule
	}
	return out, nil
}

func (h *SettingsHandler) applyFactions(ctx context.Context, req *SettingsRequest) {
	if req.ProcessEnl == nil && req.ProcessRes == nil {
		return
	}
	f := h.svc.Factions()
	if req.ProcessEnl != nil {
		f.ProcessEnl = *req.ProcessEnl
	}
	if req.ProcessRes != nil {
		f.ProcessRes = *req.ProcessRes
	}
	h.svc.SetFactions(ctx, f)
}

func (h *SettingsHandler) applyOptions(ctx context.Context, req *SettingsRequest) {
	if req.ClearOnReload == nil && req.LinkPortalNames == nil && req.ForceNameLabel == nil {
		return
	}
	o := h.svc.Options()
	if req.ClearOnReload != nil {
		o.ClearOnReload = *req.ClearOnReload
	}
	if req.LinkPortalNames != nil {
		o.LinkToSiblingLabels = *req.LinkPortalNames
	}
	if req.ForceNameLabel != nil {
		o.ForceOwnLabel = *req.ForceNameLabel
	}
	h.svc.SetOptions(ctx, o)
}
