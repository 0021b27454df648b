package hub

import (
	"encoding/json"

	"portalslayer/pkg/host"
	"portalslayer/pkg/model"
)

// Message types sent by map clients.
const (
	MsgReady          = "ready"
	MsgPortals        = "portals"
	MsgPortalSelected = "portal_selected"
	MsgMarkerClick    = "marker_click"
	MsgLabelsUpdated  = "labels_updated"
	MsgSibling        = "sibling"
)

// Message types sent to map clients.
const (
	MsgPane              = "pane"
	MsgLayerAdd          = "layer_add"
	MsgMarkerAdd         = "marker_add"
	MsgMarkerRemove      = "marker_remove"
	MsgMarkerInteractive = "marker_interactive"
	MsgLayerClear        = "layer_clear"
	MsgLabelAdd          = "label_add"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PortalsPayload upserts and drops live portal data.
type PortalsPayload struct {
	Upsert []host.Entity `json:"upsert,omitempty"`
	Remove []string      `json:"remove,omitempty"`
}

// MarkerClickPayload identifies a clicked marker.
type MarkerClickPayload struct {
	Layer  string            `json:"layer"`
	Handle host.MarkerHandle `json:"handle"`
}

// SiblingPayload announces whether the client runs the sibling label plugin.
type SiblingPayload struct {
	Present bool `json:"present"`
}

// LayerPayload creates a layer group in a pane.
type LayerPayload struct {
	Name string `json:"name"`
	Pane string `json:"pane"`
}

// MarkerAddPayload draws a marker.
type MarkerAddPayload struct {
	Layer  string            `json:"layer"`
	Handle host.MarkerHandle `json:"handle"`
	Marker host.MarkerSpec   `json:"marker"`
}

// MarkerPayload addresses an existing marker.
type MarkerPayload struct {
	Layer       string            `json:"layer"`
	Handle      host.MarkerHandle `json:"handle"`
	Interactive *bool             `json:"interactive,omitempty"`
}

// LayerClearPayload empties a layer group.
type LayerClearPayload struct {
	Layer string `json:"layer"`
}

// LabelPayload asks the sibling plugin to label a portal.
type LabelPayload struct {
	ID       string         `json:"id"`
	Position model.Position `json:"position"`
}

func encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Data: raw})
}
