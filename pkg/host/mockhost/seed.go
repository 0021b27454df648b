package mockhost

import (
	"portalslayer/pkg/config"
	"portalslayer/pkg/host"
	"portalslayer/pkg/model"
)

// FromConfig creates a ready host seeded with the configured portals.
// A sibling label plugin is attached so label linking can be exercised headless.
func FromConfig(cfg config.MockHostConfig) *Host {
	h := New()
	for _, p := range cfg.Portals {
		h.PutEntity(host.Entity{
			ID:        p.ID,
			Faction:   model.ParseFaction(p.Faction),
			Level:     p.Level,
			Title:     p.Title,
			Position:  model.Position{Lat: p.Lat, Lng: p.Lng},
			HasDetail: p.Level > 0,
		})
	}
	h.SetSibling(NewSibling())
	h.SetReady(true)
	return h
}
