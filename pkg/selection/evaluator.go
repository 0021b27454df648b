// Package selection decides what a portal selection does to the registry.
package selection

import (
	"context"
	"log/slog"

	"portalslayer/pkg/host"
	"portalslayer/pkg/metrics"
	"portalslayer/pkg/model"
)

// Mode is the interaction mode.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeDelete Mode = "delete"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeNormal || m == ModeDelete
}

// Decision is the outcome of one selection.
type Decision string

const (
	Ignored  Decision = "ignored"
	Tagged   Decision = "tagged"
	Untagged Decision = "untagged"
)

// Reasons reported alongside a decision.
const (
	ReasonNoID          = "no_id"
	ReasonNotTagged     = "not_tagged"
	ReasonDeleteMode    = "delete_mode"
	ReasonUnknown       = "unknown_entity"
	ReasonNeutral       = "neutral"
	ReasonFactionOff    = "faction_disabled"
	ReasonNoDetail      = "no_detail"
	ReasonTierInactive  = "tier_inactive"
	ReasonUnchanged     = "unchanged"
	ReasonNew           = "new"
	ReasonChanged       = "changed"
	ReasonTitleBackfill = "title_backfill"
	ReasonRejected      = "rejected"
)

// Result is a decision with the reason it was taken.
type Result struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
}

// Tagger is the registry surface the evaluator drives.
type Tagger interface {
	Get(id string) (*model.TagRecord, bool)
	Tag(ctx context.Context, rec *model.TagRecord) error
	Untag(ctx context.Context, id string) bool
}

// Interactor is told when markers must become (non-)clickable.
type Interactor interface {
	SetInteractive(on bool)
}

// Evaluator is not safe for concurrent use; the engine serializes access.
type Evaluator struct {
	tags     Tagger
	entities host.EntityLookup
	rules    func() model.RuleConfig
	markers  Interactor
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mode Mode
}

// New creates an evaluator in normal mode. rules must not block.
func New(tags Tagger, entities host.EntityLookup, rules func() model.RuleConfig, markers Interactor, m *metrics.Metrics) *Evaluator {
	return &Evaluator{
		tags:     tags,
		entities: entities,
		rules:    rules,
		markers:  markers,
		metrics:  m,
		logger:   slog.With("component", "selection"),
		mode:     ModeNormal,
	}
}

// Mode returns the current mode.
func (e *Evaluator) Mode() Mode {
	return e.mode
}

// SetMode switches mode and updates marker interactivity.
func (e *Evaluator) SetMode(m Mode) {
	if !m.Valid() {
		return
	}
	e.mode = m
	if e.markers != nil {
		e.markers.SetInteractive(m == ModeDelete)
	}
	e.logger.Info("Mode changed", "mode", m)
}

// Toggle flips between normal and delete mode and returns the new mode.
func (e *Evaluator) Toggle() Mode {
	if e.mode == ModeDelete {
		e.SetMode(ModeNormal)
	} else {
		e.SetMode(ModeDelete)
	}
	return e.mode
}

// Evaluate applies one selection event.
func (e *Evaluator) Evaluate(ctx context.Context, ev host.SelectionEvent) Result {
	res := e.evaluate(ctx, ev)
	e.metrics.Selection(string(res.Decision), res.Reason)
	e.logger.Debug("Selection evaluated", "id", ev.ID, "mode", e.mode, "decision", res.Decision, "reason", res.Reason)
	return res
}

func (e *Evaluator) evaluate(ctx context.Context, ev host.SelectionEvent) Result {
	if ev.ID == "" {
		return Result{Ignored, ReasonNoID}
	}

	if e.mode == ModeDelete {
		if e.tags.Untag(ctx, ev.ID) {
			return Result{Untagged, ReasonDeleteMode}
		}
		return Result{Ignored, ReasonNotTagged}
	}

	ent, ok := e.entities.Entity(ev.ID)
	if !ok {
		return Result{Ignored, ReasonUnknown}
	}

	rules := e.rules()
	if ent.Faction == model.FactionNeutral || ent.Faction == "" {
		return Result{Ignored, ReasonNeutral}
	}
	if !rules.Factions.Allows(ent.Faction) {
		return Result{Ignored, ReasonFactionOff}
	}

	tier := ent.Tier()
	if tier <= 0 {
		return Result{Ignored, ReasonNoDetail}
	}
	rule, ok := rules.Rule(tier)
	if !ok || !rule.Active {
		return Result{Ignored, ReasonTierInactive}
	}

	title := ent.LiveTitle()
	reason := retagReason(e.existing(ev.ID), tier, rule.Color, title)
	if reason == ReasonUnchanged {
		return Result{Ignored, ReasonUnchanged}
	}

	rec := &model.TagRecord{
		ID:    ev.ID,
		Lat:   ent.Position.Lat,
		Lng:   ent.Position.Lng,
		Tier:  tier,
		Color: rule.Color,
		Title: title,
	}
	if err := e.tags.Tag(ctx, rec); err != nil {
		e.logger.Warn("Selected portal could not be tagged", "id", ev.ID, "error", err)
		return Result{Ignored, ReasonRejected}
	}
	return Result{Tagged, reason}
}

func (e *Evaluator) existing(id string) *model.TagRecord {
	rec, ok := e.tags.Get(id)
	if !ok {
		return nil
	}
	return rec
}

// retagReason reports why a portal should be (re)tagged, or ReasonUnchanged.
// A position change alone does not re-tag.
func retagReason(existing *model.TagRecord, tier int, color, title string) string {
	switch {
	case existing == nil:
		return ReasonNew
	case existing.Tier != tier || existing.Color != color:
		return ReasonChanged
	case title != "" && existing.Title == "":
		return ReasonTitleBackfill
	default:
		return ReasonUnchanged
	}
}
