package model

import (
	"math"

	"github.com/paulmach/orb"
)

// Position is a WGS84 coordinate as reported by the host map.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the position as an orb point (lng, lat order).
func (p Position) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// Valid reports whether the position can be placed on a map.
func (p Position) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// TagRecord is the persisted decision to mark a portal.
// The JSON field names match the layout written by earlier releases.
type TagRecord struct {
	ID    string  `json:"-"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Tier  int     `json:"level"`
	Color string  `json:"color"`
	Title string  `json:"title,omitempty"`
}

// Position returns the record location.
func (r *TagRecord) Position() Position {
	return Position{Lat: r.Lat, Lng: r.Lng}
}

// Drawable reports whether the record carries enough data to be rendered.
func (r *TagRecord) Drawable() bool {
	return r.Color != "" && r.Position().Valid()
}

// DisplayName returns the title, falling back to the portal id.
func (r *TagRecord) DisplayName() string {
	if r.Title != "" {
		return r.Title
	}
	return r.ID
}

// Clone returns an independent copy of the record.
func (r *TagRecord) Clone() *TagRecord {
	c := *r
	return &c
}

// Records is the persisted registry layout: portal id -> record.
type Records map[string]*TagRecord

// Faction is the owning side of a portal.
type Faction string

const (
	FactionNeutral     Faction = "neutral"
	FactionEnlightened Faction = "enlightened"
	FactionResistance  Faction = "resistance"
)

// ParseFaction accepts the long names and the short team codes used by map clients.
func ParseFaction(s string) Faction {
	switch s {
	case "enlightened", "ENLIGHTENED", "enl", "ENL", "E":
		return FactionEnlightened
	case "resistance", "RESISTANCE", "res", "RES", "R":
		return FactionResistance
	default:
		return FactionNeutral
	}
}
