// Package host defines what the engine needs from the map runtime it runs against.
// The websocket hub implements it for browser clients; mockhost implements it in memory.
package host

import (
	"context"
	"math"

	"portalslayer/pkg/model"
)

// Entity is the live view of a portal as currently loaded by the map.
type Entity struct {
	ID       string         `json:"id"`
	Faction  model.Faction  `json:"faction"`
	Level    float64        `json:"level"`
	Title    string         `json:"title,omitempty"`
	Position model.Position `json:"position"`
	// HasDetail is false while the map only knows the portal's location.
	HasDetail bool `json:"has_detail"`
}

// Tier is floor(level) when detail is loaded, 0 otherwise.
func (e Entity) Tier() int {
	if !e.HasDetail || math.IsNaN(e.Level) {
		return 0
	}
	return int(math.Floor(e.Level))
}

// LiveTitle returns the title only when detail is loaded.
func (e Entity) LiveTitle() string {
	if !e.HasDetail {
		return ""
	}
	return e.Title
}

// EntityLookup resolves live portal data by id.
type EntityLookup interface {
	Entity(id string) (Entity, bool)
}

// SelectionEvent is published when the user selects a portal.
type SelectionEvent struct {
	ID       string `json:"id"`
	Previous string `json:"previous,omitempty"`
}

// SelectionHandler receives selection events.
type SelectionHandler func(ctx context.Context, ev SelectionEvent)

// SelectionHook is the host's selection event bus. Subscribing under a key that is
// already registered replaces the previous handler.
type SelectionHook interface {
	Subscribe(key string, h SelectionHandler)
	Unsubscribe(key string)
}

// MarkerHandle identifies a drawn marker within a layer.
type MarkerHandle string

// Label is a permanent text label attached to a marker.
type Label struct {
	Text      string `json:"text"`
	Direction string `json:"direction"`
	Offset    [2]int `json:"offset"`
}

// MarkerSpec describes one marker to draw.
type MarkerSpec struct {
	ID          string         `json:"id"`
	Position    model.Position `json:"position"`
	Glyph       string         `json:"glyph"`
	Color       string         `json:"color"`
	Interactive bool           `json:"interactive"`
	Label       *Label         `json:"label,omitempty"`
}

// PaneSpec describes a rendering pane.
type PaneSpec struct {
	Name          string `json:"name"`
	ZIndex        int    `json:"z_index"`
	PointerEvents bool   `json:"pointer_events"`
}

// Layer is a toggleable group of markers.
type Layer interface {
	// AddMarker draws a marker. onClick runs on a host goroutine when the marker is clicked.
	AddMarker(spec MarkerSpec, onClick func()) MarkerHandle
	RemoveMarker(h MarkerHandle)
	SetInteractive(h MarkerHandle, on bool)
	Clear()
}

// LayerRegistry creates panes and named layer groups.
type LayerRegistry interface {
	// EnsurePane creates the pane once. It reports false if the map cannot render.
	EnsurePane(p PaneSpec) bool
	// LayerGroup returns the named layer group in pane, creating it once.
	LayerGroup(name, pane string) (Layer, bool)
}

// ReadyNotifier reports map (re)initialization, e.g. a client reconnect.
type ReadyNotifier interface {
	OnReady(key string, fn func()) (cancel func())
}

// Sibling is the independent label plugin the engine can feed.
type Sibling interface {
	AddLabel(id string, pos model.Position)
	// OnLabelsUpdated registers fn to run after every sibling label pass.
	// Registering under an existing key replaces the listener.
	OnLabelsUpdated(key string, fn func()) (cancel func())
}

// SiblingProvider reports whether the sibling plugin is present.
type SiblingProvider interface {
	Sibling() (Sibling, bool)
	// OnSibling registers fn under key to run whenever a sibling plugin announces itself.
	OnSibling(key string, fn func()) (cancel func())
}

// Runtime is the full host capability set.
type Runtime interface {
	EntityLookup
	SelectionHook
	LayerRegistry
	ReadyNotifier
	SiblingProvider

	// Ready reports whether the map and its rendering library are available.
	Ready() bool
}
