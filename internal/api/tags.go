package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"portalslayer/pkg/engine"
	"portalslayer/pkg/model"
	"portalslayer/pkg/registry"
)

// TagService is the engine surface used by TagsHandler.
type TagService interface {
	Tag(ctx context.Context, rec *model.TagRecord) error
	Untag(ctx context.Context, id string) bool
	ClearAll(ctx context.Context)
	RestoreAll(ctx context.Context) (int, error)
	Records() []*model.TagRecord
	Record(id string) (*model.TagRecord, bool)
}

// TagsHandler serves the tag registry.
type TagsHandler struct {
	svc TagService
}

// NewTagsHandler creates a new TagsHandler.
func NewTagsHandler(svc TagService) *TagsHandler {
	return &TagsHandler{svc: svc}
}

// TagResponse is one tag record on the wire.
type TagResponse struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Tier  int     `json:"tier"`
	Color string  `json:"color"`
	Title string  `json:"title,omitempty"`
}

// TagRequest is the body of PUT /api/tags/{id}.
type TagRequest struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Tier  int     `json:"tier"`
	Color string  `json:"color"`
	Title string  `json:"title,omitempty"`
}

func toResponse(r *model.TagRecord) TagResponse {
	return TagResponse{ID: r.ID, Lat: r.Lat, Lng: r.Lng, Tier: r.Tier, Color: r.Color, Title: r.Title}
}

// HandleList returns all tags, optionally limited to bbox=minLng,minLat,maxLng,maxLat.
func (h *TagsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var bound *orb.Bound
	if raw := r.URL.Query().Get("bbox"); raw != "" {
		b, err := parseBBox(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		bound = &b
	}

	resp := []TagResponse{}
	for _, rec := range h.svc.Records() {
		if bound != nil && !bound.Contains(rec.Position().Point()) {
			continue
		}
		resp = append(resp, toResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseBBox(raw string) (orb.Bound, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox needs 4 values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox value %d: %w", i, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bbox min exceeds max")
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// HandleGeoJSON exports all tags as a FeatureCollection of points.
func (h *TagsHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc := geojson.NewFeatureCollection()
	for _, rec := range h.svc.Records() {
		f := geojson.NewFeature(rec.Position().Point())
		f.ID = rec.ID
		f.Properties["tier"] = rec.Tier
		f.Properties["color"] = rec.Color
		if rec.Title != "" {
			f.Properties["title"] = rec.Title
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		slog.Error("Failed to encode tag export", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write tag export", "error", err)
	}
}

// HandleGet returns one tag.
func (h *TagsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.svc.Record(r.PathValue("id"))
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// HandlePut tags a portal directly, replacing any existing tag.
func (h *TagsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	rec := &model.TagRecord{ID: id, Lat: req.Lat, Lng: req.Lng, Tier: req.Tier, Color: req.Color, Title: req.Title}
	if err := h.svc.Tag(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// HandleDelete untags a portal.
func (h *TagsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	removed := h.svc.Untag(r.Context(), r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// HandleClear removes every tag.
func (h *TagsHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// HandleRestore redraws every tag on the map.
func (h *TagsHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.RestoreAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"drawn": n})
}

// writeError maps engine errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidRecord),
		errors.Is(err, engine.ErrInvalidTier),
		errors.Is(err, engine.ErrInvalidColor):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrNotReady), errors.Is(err, engine.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("Request failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
