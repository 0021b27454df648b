// Package mockhost is an in-memory host runtime. It records every pane, layer and
// marker operation so tests can assert on them, and it backs the "mock" provider.
package mockhost

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"portalslayer/pkg/host"
	"portalslayer/pkg/model"
)

// Marker is a recorded marker.
type Marker struct {
	Handle  host.MarkerHandle
	Spec    host.MarkerSpec
	onClick func()
}

// Host implements host.Runtime.
type Host struct {
	mu sync.Mutex

	ready    bool
	entities map[string]host.Entity

	selection  map[string]host.SelectionHandler
	readyFns   map[string]func()
	siblingFns map[string]func()

	panes  map[string]host.PaneSpec
	layers map[string]*Layer

	sibling *Sibling
}

// New creates a host that is not ready yet and has no sibling.
func New() *Host {
	return &Host{
		entities:  make(map[string]host.Entity),
		selection:  make(map[string]host.SelectionHandler),
		readyFns:   make(map[string]func()),
		siblingFns: make(map[string]func()),
		panes:      make(map[string]host.PaneSpec),
		layers:     make(map[string]*Layer),
	}
}

// SetReady flips readiness. Turning it on fires the ready listeners.
func (h *Host) SetReady(ready bool) {
	h.mu.Lock()
	h.ready = ready
	fns := make([]func(), 0, len(h.readyFns))
	if ready {
		for _, fn := range h.readyFns {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Ready implements host.Runtime.
func (h *Host) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// PutEntity adds or replaces live portal data.
func (h *Host) PutEntity(e host.Entity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entities[e.ID] = e
}

// DropEntity forgets live portal data, as when a portal scrolls out of view.
func (h *Host) DropEntity(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entities, id)
}

// Entity implements host.EntityLookup.
func (h *Host) Entity(id string) (host.Entity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entities[id]
	return e, ok
}

// Subscribe implements host.SelectionHook.
func (h *Host) Subscribe(key string, fn host.SelectionHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selection[key] = fn
}

// Unsubscribe implements host.SelectionHook.
func (h *Host) Unsubscribe(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.selection, key)
}

// Subscribers returns the number of registered selection handlers.
func (h *Host) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.selection)
}

// Select publishes a selection event to every subscriber.
func (h *Host) Select(ctx context.Context, id string) {
	h.mu.Lock()
	fns := make([]host.SelectionHandler, 0, len(h.selection))
	for _, fn := range h.selection {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, host.SelectionEvent{ID: id})
	}
}

// OnReady implements host.ReadyNotifier.
func (h *Host) OnReady(key string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readyFns[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.readyFns, key)
	}
}

// EnsurePane implements host.LayerRegistry.
func (h *Host) EnsurePane(p host.PaneSpec) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return false
	}
	if _, ok := h.panes[p.Name]; !ok {
		h.panes[p.Name] = p
	}
	return true
}

// Pane returns a created pane.
func (h *Host) Pane(name string) (host.PaneSpec, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.panes[name]
	return p, ok
}

// LayerGroup implements host.LayerRegistry.
func (h *Host) LayerGroup(name, pane string) (host.Layer, bool) {
	l, ok := h.layer(name, pane, true)
	if !ok {
		return nil, false
	}
	return l, true
}

// Layer returns an existing layer group for inspection.
func (h *Host) Layer(name string) *Layer {
	l, _ := h.layer(name, "", false)
	return l
}

func (h *Host) layer(name, pane string, create bool) (*Layer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.layers[name]; ok {
		return l, true
	}
	if !create || !h.ready {
		return nil, false
	}
	if _, ok := h.panes[pane]; !ok {
		return nil, false
	}
	l := &Layer{Name: name, Pane: pane, markers: make(map[host.MarkerHandle]*Marker)}
	h.layers[name] = l
	return l, true
}

// SetSibling installs (or with nil removes) the sibling label plugin. Installing
// one fires the sibling listeners.
func (h *Host) SetSibling(s *Sibling) {
	h.mu.Lock()
	h.sibling = s
	fns := make([]func(), 0, len(h.siblingFns))
	if s != nil {
		for _, fn := range h.siblingFns {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// OnSibling implements host.SiblingProvider.
func (h *Host) OnSibling(key string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.siblingFns[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.siblingFns, key)
	}
}

// Sibling implements host.SiblingProvider.
func (h *Host) Sibling() (host.Sibling, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sibling == nil {
		return nil, false
	}
	return h.sibling, true
}

// Layer is a recording layer group.
type Layer struct {
	Name string
	Pane string

	mu      sync.Mutex
	seq     int
	markers map[host.MarkerHandle]*Marker
	clears  int
}

// AddMarker implements host.Layer.
func (l *Layer) AddMarker(spec host.MarkerSpec, onClick func()) host.MarkerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	h := host.MarkerHandle(fmt.Sprintf("m%d", l.seq))
	l.markers[h] = &Marker{Handle: h, Spec: spec, onClick: onClick}
	return h
}

// RemoveMarker implements host.Layer.
func (l *Layer) RemoveMarker(h host.MarkerHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.markers, h)
}

// SetInteractive implements host.Layer.
func (l *Layer) SetInteractive(h host.MarkerHandle, on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.markers[h]; ok {
		m.Spec.Interactive = on
	}
}

// Clear implements host.Layer.
func (l *Layer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.markers = make(map[host.MarkerHandle]*Marker)
	l.clears++
}

// Markers returns a snapshot of drawn markers ordered by portal id.
func (l *Layer) Markers() []Marker {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Marker, 0, len(l.markers))
	for _, m := range l.markers {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Spec.ID == out[j].Spec.ID {
			return out[i].Handle < out[j].Handle
		}
		return out[i].Spec.ID < out[j].Spec.ID
	})
	return out
}

// MarkersFor returns every drawn marker of one portal.
func (l *Layer) MarkersFor(id string) []Marker {
	var out []Marker
	for _, m := range l.Markers() {
		if m.Spec.ID == id {
			out = append(out, m)
		}
	}
	return out
}

// Clears returns how often the layer was cleared.
func (l *Layer) Clears() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clears
}

// Click simulates a click on the marker of portal id. Clicks on non-interactive
// markers are swallowed by the pane, as on the real map.
func (l *Layer) Click(id string) bool {
	l.mu.Lock()
	var fn func()
	for _, m := range l.markers {
		if m.Spec.ID == id && m.Spec.Interactive {
			fn = m.onClick
			break
		}
	}
	l.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Sibling is a recording sibling label plugin.
type Sibling struct {
	mu        sync.Mutex
	labels    []string
	listeners map[string]func()
}

// NewSibling creates an empty sibling.
func NewSibling() *Sibling {
	return &Sibling{listeners: make(map[string]func())}
}

// AddLabel implements host.Sibling.
func (s *Sibling) AddLabel(id string, pos model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, id)
}

// OnLabelsUpdated implements host.Sibling.
func (s *Sibling) OnLabelsUpdated(key string, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[key] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, key)
	}
}

// Update runs a sibling label pass: its own labels are rebuilt, then listeners run.
func (s *Sibling) Update() {
	s.mu.Lock()
	s.labels = nil
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Labels returns the ids announced since the last pass.
func (s *Sibling) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Listeners returns the number of registered update listeners.
func (s *Sibling) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
