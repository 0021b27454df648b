// Package persist reads and writes the three persisted blobs (tag records, rule
// configuration, behavior options). Nothing in here returns an error to callers:
// absent or corrupt data yields defaults, failed writes are logged and the in-memory
// state stays authoritative for the session.
package persist

import (
	"context"
	"encoding/json"
	"log/slog"

	"portalslayer/pkg/metrics"
	"portalslayer/pkg/model"
	"portalslayer/pkg/store"
)

// Storage keys. They are kept from earlier releases so existing data is picked up.
const (
	KeyData    = "plugin-portal-slayer-data"
	KeyConfig  = "plugin-portal-slayer-config"
	KeyOptions = "plugin-portal-slayer-options"
)

// Adapter is the Persistent Store Adapter over a StateStore.
type Adapter struct {
	store   store.StateStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an adapter. m may be nil.
func New(st store.StateStore, m *metrics.Metrics) *Adapter {
	return &Adapter{
		store:   st,
		logger:  slog.With("component", "persist"),
		metrics: m,
	}
}

// LoadRecords returns the persisted registry. Entries that fail to decode are dropped
// individually; a blob that is not an object at all yields an empty registry.
func (a *Adapter) LoadRecords(ctx context.Context) model.Records {
	recs := make(model.Records)

	raw, ok := a.store.GetState(ctx, KeyData)
	if !ok || raw == "" {
		return recs
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		a.logger.Warn("Stored tag records are corrupt, starting empty", "key", KeyData, "error", err)
		a.metrics.StoreFailure(KeyData, "load")
		return recs
	}

	skipped := 0
	for id, entry := range entries {
		var r model.TagRecord
		if err := json.Unmarshal(entry, &r); err != nil || string(entry) == "null" {
			skipped++
			continue
		}
		r.ID = id
		recs[id] = &r
	}
	if skipped > 0 {
		a.logger.Warn("Dropped undecodable tag records", "count", skipped)
		a.metrics.StoreFailure(KeyData, "load")
	}
	return recs
}

// SaveRecords persists the full registry. It reports whether the write succeeded.
func (a *Adapter) SaveRecords(ctx context.Context, recs model.Records) bool {
	if recs == nil {
		recs = model.Records{}
	}
	return a.save(ctx, KeyData, recs)
}

// LoadRules returns the rule configuration shallow-merged over the defaults.
func (a *Adapter) LoadRules(ctx context.Context) model.RuleConfig {
	return load(a, ctx, KeyConfig, model.DefaultRuleConfig)
}

// SaveRules persists the rule configuration.
func (a *Adapter) SaveRules(ctx context.Context, c model.RuleConfig) bool {
	return a.save(ctx, KeyConfig, c)
}

// LoadOptions returns the behavior options shallow-merged over the defaults.
func (a *Adapter) LoadOptions(ctx context.Context) model.BehaviorOptions {
	return load(a, ctx, KeyOptions, model.DefaultBehaviorOptions)
}

// SaveOptions persists the behavior options.
func (a *Adapter) SaveOptions(ctx context.Context, o model.BehaviorOptions) bool {
	return a.save(ctx, KeyOptions, o)
}

// load decodes the blob under key over a fresh default value.
// Fields missing from the blob keep their defaults; a corrupt blob yields pure defaults.
func load[T any](a *Adapter, ctx context.Context, key string, defaults func() T) T {
	raw, ok := a.store.GetState(ctx, key)
	if !ok || raw == "" {
		return defaults()
	}

	v := defaults()
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		a.logger.Warn("Stored settings are corrupt, using defaults", "key", key, "error", err)
		a.metrics.StoreFailure(key, "load")
		return defaults()
	}
	return v
}

func (a *Adapter) save(ctx context.Context, key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("Failed to encode state", "key", key, "error", err)
		a.metrics.StoreFailure(key, "save")
		return false
	}
	if err := a.store.SetState(ctx, key, string(data)); err != nil {
		a.logger.Error("Failed to persist state, keeping in-memory copy", "key", key, "error", err)
		a.metrics.StoreFailure(key, "save")
		return false
	}
	return true
}
