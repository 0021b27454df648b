// Package registry holds the authoritative set of tagged portals and keeps the
// persisted copy and the rendered markers in step with it.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"portalslayer/pkg/host"
	"portalslayer/pkg/metrics"
	"portalslayer/pkg/model"
	"portalslayer/pkg/persist"
)

// Drawer is the rendering side the registry drives.
type Drawer interface {
	EnsureInfra() bool
	Draw(rec *model.TagRecord) (host.MarkerHandle, bool)
	Remove(id string)
	Clear()
}

// Registry is not safe for concurrent use; the engine serializes access.
type Registry struct {
	records  model.Records
	persist  *persist.Adapter
	drawer   Drawer
	entities host.EntityLookup
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates an empty registry. entities is used to backfill titles on restore and may be nil.
func New(p *persist.Adapter, d Drawer, entities host.EntityLookup, m *metrics.Metrics) *Registry {
	return &Registry{
		records:  make(model.Records),
		persist:  p,
		drawer:   d,
		entities: entities,
		metrics:  m,
		logger:   slog.With("component", "registry"),
	}
}

// Load replaces the in-memory set with the persisted one. With clearOnReload the
// stored set is discarded and the empty set is written back.
func (r *Registry) Load(ctx context.Context, clearOnReload bool) {
	if clearOnReload {
		r.records = make(model.Records)
		r.persist.SaveRecords(ctx, r.records)
		r.logger.Info("Cleared tags on reload")
	} else {
		r.records = r.persist.LoadRecords(ctx)
		r.logger.Info("Loaded tags", "count", len(r.records))
	}
	r.metrics.SetTags(len(r.records))
}

// Tag stores rec, replacing any record for the same portal, persists the registry
// and redraws the portal's marker.
func (r *Registry) Tag(ctx context.Context, rec *model.TagRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	stored := rec.Clone()
	r.records[stored.ID] = stored
	r.persist.SaveRecords(ctx, r.records)
	r.drawer.Draw(stored)

	r.metrics.TagOp("tag")
	r.metrics.SetTags(len(r.records))
	r.logger.Debug("Tagged portal", "id", stored.ID, "tier", stored.Tier, "color", stored.Color)
	return nil
}

func validate(rec *model.TagRecord) error {
	switch {
	case rec == nil:
		return fmt.Errorf("%w: nil", ErrInvalidRecord)
	case rec.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case rec.Tier < 1 || rec.Tier > model.MaxTier:
		return fmt.Errorf("%w: tier %d out of range", ErrInvalidRecord, rec.Tier)
	case rec.Color == "":
		return fmt.Errorf("%w: missing color", ErrInvalidRecord)
	case !rec.Position().Valid():
		return fmt.Errorf("%w: invalid position %v,%v", ErrInvalidRecord, rec.Lat, rec.Lng)
	}
	return nil
}

// Untag removes the portal's record and marker. It reports whether a record existed;
// untagging an unknown portal changes nothing.
func (r *Registry) Untag(ctx context.Context, id string) bool {
	_, ok := r.records[id]
	if ok {
		delete(r.records, id)
		r.persist.SaveRecords(ctx, r.records)
		r.metrics.TagOp("untag")
		r.metrics.SetTags(len(r.records))
		r.logger.Debug("Untagged portal", "id", id)
	}
	r.drawer.Remove(id)
	return ok
}

// ClearAll removes every record and marker.
func (r *Registry) ClearAll(ctx context.Context) {
	n := len(r.records)
	r.records = make(model.Records)
	r.persist.SaveRecords(ctx, r.records)
	r.drawer.Clear()

	r.metrics.TagOp("clear")
	r.metrics.SetTags(0)
	r.logger.Info("Cleared all tags", "count", n)
}

// RestoreAll redraws every record from scratch and returns the number drawn.
// Records without a drawable position or color are kept but skipped. Missing titles
// are filled in from live portal data and the corrected set is persisted once.
// It reports false when the host cannot render yet.
func (r *Registry) RestoreAll(ctx context.Context) (int, bool) {
	if !r.drawer.EnsureInfra() {
		return 0, false
	}
	r.drawer.Clear()

	drawn, skipped, backfilled := 0, 0, 0
	for _, id := range r.ids() {
		rec := r.records[id]
		if !rec.Drawable() {
			skipped++
			continue
		}
		if rec.Title == "" && r.entities != nil {
			if e, ok := r.entities.Entity(id); ok && e.LiveTitle() != "" {
				rec.Title = e.LiveTitle()
				backfilled++
			}
		}
		if _, ok := r.drawer.Draw(rec); ok {
			drawn++
		}
	}
	if backfilled > 0 {
		r.persist.SaveRecords(ctx, r.records)
	}

	r.metrics.TagOp("restore")
	r.logger.Info("Restored markers", "drawn", drawn, "skipped", skipped, "backfilled", backfilled)
	return drawn, true
}

// Get returns a copy of the portal's record.
func (r *Registry) Get(id string) (*model.TagRecord, bool) {
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Has reports whether the portal is tagged.
func (r *Registry) Has(id string) bool {
	_, ok := r.records[id]
	return ok
}

// Records returns copies of all records ordered by id.
func (r *Registry) Records() []*model.TagRecord {
	out := make([]*model.TagRecord, 0, len(r.records))
	for _, id := range r.ids() {
		out = append(out, r.records[id].Clone())
	}
	return out
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return len(r.records)
}

func (r *Registry) ids() []string {
	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
