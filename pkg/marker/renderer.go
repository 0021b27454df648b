// Package marker draws tag markers into a dedicated pane and layer group of the host map.
package marker

import (
	"log/slog"

	"portalslayer/pkg/host"
	"portalslayer/pkg/metrics"
	"portalslayer/pkg/model"
)

const (
	// Glyph is the marker symbol, tinted with the record color.
	Glyph = "▼"

	labelDirection = "bottom"
)

var labelOffset = [2]int{0, 5}

// Announcer receives portals whose label is delegated to the sibling plugin.
type Announcer interface {
	Announce(id string, pos model.Position)
}

// Config names the pane and layer group markers are drawn into.
type Config struct {
	PaneName   string
	PaneZIndex int
	LayerName  string
}

// Renderer keeps exactly one marker per tagged portal.
// It is not safe for concurrent use; the engine serializes access.
type Renderer struct {
	host    host.LayerRegistry
	cfg     Config
	options func() model.BehaviorOptions
	metrics *metrics.Metrics
	logger  *slog.Logger

	announcer Announcer
	onClick   func(id string)

	layer       host.Layer
	handles     map[string]host.MarkerHandle
	interactive bool
}

// New creates a renderer. options is read on every draw and must not block.
func New(reg host.LayerRegistry, cfg Config, options func() model.BehaviorOptions, m *metrics.Metrics) *Renderer {
	return &Renderer{
		host:    reg,
		cfg:     cfg,
		options: options,
		metrics: m,
		logger:  slog.With("component", "marker"),
		handles: make(map[string]host.MarkerHandle),
	}
}

// SetAnnouncer wires the sibling bridge.
func (r *Renderer) SetAnnouncer(a Announcer) {
	r.announcer = a
}

// OnClick sets the marker click callback. It runs on a host goroutine.
func (r *Renderer) OnClick(fn func(id string)) {
	r.onClick = fn
}

// EnsureInfra creates the pane and the layer group once.
// It reports false while the host cannot render.
func (r *Renderer) EnsureInfra() bool {
	if r.layer != nil {
		return true
	}
	ok := r.host.EnsurePane(host.PaneSpec{
		Name:          r.cfg.PaneName,
		ZIndex:        r.cfg.PaneZIndex,
		PointerEvents: false,
	})
	if !ok {
		return false
	}
	layer, ok := r.host.LayerGroup(r.cfg.LayerName, r.cfg.PaneName)
	if !ok {
		return false
	}
	r.layer = layer
	r.logger.Debug("Marker layer ready", "pane", r.cfg.PaneName, "layer", r.cfg.LayerName)
	return true
}

// Draw renders rec, replacing any marker already drawn for the same portal.
func (r *Renderer) Draw(rec *model.TagRecord) (host.MarkerHandle, bool) {
	if !r.EnsureInfra() {
		return "", false
	}
	r.Remove(rec.ID)

	opts := r.options()
	spec := host.MarkerSpec{
		ID:          rec.ID,
		Position:    rec.Position(),
		Glyph:       Glyph,
		Color:       rec.Color,
		Interactive: r.interactive,
	}
	if opts.ForceOwnLabel && rec.Title != "" {
		spec.Label = &host.Label{Text: rec.Title, Direction: labelDirection, Offset: labelOffset}
	}

	id := rec.ID
	h := r.layer.AddMarker(spec, func() { r.click(id) })
	r.handles[id] = h
	r.metrics.SetMarkers(len(r.handles))

	if !opts.ForceOwnLabel && r.announcer != nil {
		r.announcer.Announce(id, spec.Position)
	}
	return h, true
}

func (r *Renderer) click(id string) {
	if fn := r.onClick; fn != nil {
		fn(id)
	}
}

// Remove drops the marker of one portal if drawn.
func (r *Renderer) Remove(id string) {
	h, ok := r.handles[id]
	if !ok {
		return
	}
	r.layer.RemoveMarker(h)
	delete(r.handles, id)
	r.metrics.SetMarkers(len(r.handles))
}

// Clear drops every marker.
func (r *Renderer) Clear() {
	if r.layer != nil {
		r.layer.Clear()
	}
	clear(r.handles)
	r.metrics.SetMarkers(0)
}

// SetInteractive makes every existing and future marker (non-)clickable.
func (r *Renderer) SetInteractive(on bool) {
	r.interactive = on
	for _, h := range r.handles {
		r.layer.SetInteractive(h, on)
	}
}

// Interactive reports the current interactivity.
func (r *Renderer) Interactive() bool {
	return r.interactive
}

// Handle returns the marker handle of a portal.
func (r *Renderer) Handle(id string) (host.MarkerHandle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// Len returns the number of drawn markers.
func (r *Renderer) Len() int {
	return len(r.handles)
}
