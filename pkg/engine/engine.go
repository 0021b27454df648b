// Package engine wires the registry, renderer, selection evaluator and sibling bridge
// into one context object and brings it up against a host map.
//
// All operations take one mutex. Host callbacks (selections, marker clicks, sibling
// label passes, reconnects) arrive on host goroutines and are serialized the same way.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"portalslayer/pkg/bridge"
	"portalslayer/pkg/host"
	"portalslayer/pkg/marker"
	"portalslayer/pkg/metrics"
	"portalslayer/pkg/model"
	"portalslayer/pkg/persist"
	"portalslayer/pkg/registry"
	"portalslayer/pkg/selection"
	"portalslayer/pkg/store"
)

// SubscriptionKey identifies the engine's handlers on the host.
const SubscriptionKey = "portal-slayer"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidColor reports whether c is a #RRGGBB color.
func ValidColor(c string) bool {
	return colorPattern.MatchString(c)
}

// Engine is the explicit application context.
type Engine struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	host    host.Runtime
	persist *persist.Adapter
	metrics *metrics.Metrics
	logger  *slog.Logger

	registry  *registry.Registry
	renderer  *marker.Renderer
	evaluator *selection.Evaluator
	bridge    *bridge.Bridge

	rules   model.RuleConfig
	options model.BehaviorOptions

	cancelReady   func()
	cancelSibling func()
	bridgeArmed   bool
}

// New loads settings and tags from st and builds the engine. Nothing is drawn until
// the host becomes ready (see Sequencer). m may be nil.
func New(ctx context.Context, rt host.Runtime, st store.StateStore, cfg marker.Config, m *metrics.Metrics) *Engine {
	ctx, cancel := context.WithCancel(ctx)
	e := &Engine{
		ctx:     ctx,
		cancel:  cancel,
		host:    rt,
		persist: persist.New(st, m),
		metrics: m,
		logger:  slog.With("component", "engine"),
	}

	e.rules = e.persist.LoadRules(ctx)
	e.options = e.persist.LoadOptions(ctx)

	e.renderer = marker.New(rt, cfg, e.currentOptions, m)
	e.registry = registry.New(e.persist, e.renderer, rt, m)
	e.evaluator = selection.New(e.registry, rt, e.currentRules, e.renderer, m)
	e.bridge = bridge.New(e.registry.Records, e.currentOptions, e.do)

	e.renderer.SetAnnouncer(e.bridge)
	e.renderer.OnClick(e.onMarkerClick)

	e.registry.Load(ctx, e.options.ClearOnReload)
	return e
}

// currentOptions and currentRules are read by components while the lock is held.
func (e *Engine) currentOptions() model.BehaviorOptions { return e.options }

func (e *Engine) currentRules() model.RuleConfig { return e.rules }

// do runs fn under the engine lock unless the engine is closed.
func (e *Engine) do(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	fn()
}

// Close detaches from the host. Further host callbacks are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.bridge.Uninstall()
	e.host.Unsubscribe(SubscriptionKey)
	if e.cancelReady != nil {
		e.cancelReady()
		e.cancelReady = nil
	}
	if e.cancelSibling != nil {
		e.cancelSibling()
		e.cancelSibling = nil
	}
	e.cancel()
	e.logger.Info("Engine closed")
}

// install draws the persisted tags and registers the selection and reconnect handlers.
// Re-installing replaces the previous registrations.
func (e *Engine) install() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if !e.renderer.EnsureInfra() {
		return ErrNotReady
	}
	e.registry.RestoreAll(e.ctx)

	e.host.Unsubscribe(SubscriptionKey)
	e.host.Subscribe(SubscriptionKey, e.onSelection)

	if e.cancelReady != nil {
		e.cancelReady()
	}
	e.cancelReady = e.host.OnReady(SubscriptionKey, e.onHostReady)

	if e.cancelSibling != nil {
		e.cancelSibling()
	}
	e.cancelSibling = e.host.OnSibling(SubscriptionKey, e.onSiblingAvailable)
	return nil
}

// installBridge links the sibling label plugin if the host has one. Afterwards a
// sibling that announces itself later is linked when it appears.
func (e *Engine) installBridge() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.bridgeArmed = true
	sib, ok := e.host.Sibling()
	if !ok {
		e.logger.Info("No sibling label plugin, label linking disabled")
		return false
	}
	return e.bridge.Install(sib)
}

func (e *Engine) onSelection(ctx context.Context, ev host.SelectionEvent) {
	e.do(func() { e.evaluator.Evaluate(ctx, ev) })
}

func (e *Engine) onMarkerClick(id string) {
	e.do(func() {
		if e.evaluator.Mode() != selection.ModeDelete {
			return
		}
		e.registry.Untag(e.ctx, id)
	})
}

// onSiblingAvailable links a sibling that appeared after the bootstrap sibling step.
func (e *Engine) onSiblingAvailable() {
	e.do(func() {
		if !e.bridgeArmed || e.bridge.Installed() {
			return
		}
		sib, ok := e.host.Sibling()
		if !ok {
			return
		}
		if e.bridge.Install(sib) {
			e.logger.Info("Sibling label plugin linked late")
		}
	})
}

// onHostReady redraws after the map was re-initialized, e.g. a client reconnect.
func (e *Engine) onHostReady() {
	e.do(func() {
		if _, ok := e.registry.RestoreAll(e.ctx); !ok {
			e.logger.Warn("Host reported ready but cannot render")
		}
	})
}

// Select evaluates a selection event as if the host had published it.
func (e *Engine) Select(ctx context.Context, ev host.SelectionEvent) (selection.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return selection.Result{}, ErrClosed
	}
	return e.evaluator.Evaluate(ctx, ev), nil
}

// Tag stores a record and draws it.
func (e *Engine) Tag(ctx context.Context, rec *model.TagRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.registry.Tag(ctx, rec)
}

// Untag removes a portal's record and marker and reports whether it was tagged.
func (e *Engine) Untag(ctx context.Context, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	return e.registry.Untag(ctx, id)
}

// ClearAll removes every tag.
func (e *Engine) ClearAll(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.registry.ClearAll(ctx)
}

// RestoreAll redraws every tag and returns the number of markers drawn.
func (e *Engine) RestoreAll(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	n, ok := e.registry.RestoreAll(ctx)
	if !ok {
		return 0, ErrNotReady
	}
	return n, nil
}

// ToggleDeleteMode flips delete mode and returns the new mode.
// A closed engine keeps its mode.
func (e *Engine) ToggleDeleteMode() selection.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.evaluator.Mode()
	}
	return e.evaluator.Toggle()
}

// SetDeleteMode enables or disables delete mode.
func (e *Engine) SetDeleteMode(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if on {
		e.evaluator.SetMode(selection.ModeDelete)
	} else {
		e.evaluator.SetMode(selection.ModeNormal)
	}
}

// Mode returns the interaction mode.
func (e *Engine) Mode() selection.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluator.Mode()
}

// Records returns copies of all tags ordered by id.
func (e *Engine) Records() []*model.TagRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Records()
}

// Record returns a copy of one tag.
func (e *Engine) Record(id string) (*model.TagRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Get(id)
}

// Rules returns a copy of the rule configuration.
func (e *Engine) Rules() model.RuleConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rules.Clone()
}

// SetTierRule replaces the rule of one tier and persists the configuration.
// Existing tags keep their color until the portal is selected again.
func (e *Engine) SetTierRule(ctx context.Context, tier int, rule model.TierRule) error {
	if tier < 1 || tier > model.MaxTier {
		return fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	if !ValidColor(rule.Color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, rule.Color)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.rules.Tiers[tier] = rule
	e.persist.SaveRules(ctx, e.rules)
	e.logger.Info("Tier rule updated", "tier", tier, "active", rule.Active, "color", rule.Color)
	return nil
}

// Factions returns the faction filter.
func (e *Engine) Factions() model.FactionFilter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rules.Factions
}

// SetFactions replaces the faction filter and persists the configuration.
func (e *Engine) SetFactions(ctx context.Context, f model.FactionFilter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.rules.Factions = f
	e.persist.SaveRules(ctx, e.rules)
	e.logger.Info("Faction filter updated", "enl", f.ProcessEnl, "res", f.ProcessRes)
}

// Options returns the behavior options.
func (e *Engine) Options() model.BehaviorOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.options
}

// SetOptions replaces and persists the behavior options. Switching the own label
// on or off redraws every marker.
func (e *Engine) SetOptions(ctx context.Context, o model.BehaviorOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	prev := e.options
	e.options = o
	e.persist.SaveOptions(ctx, o)
	e.logger.Info("Options updated",
		"clear_on_reload", o.ClearOnReload,
		"link_sibling_labels", o.LinkToSiblingLabels,
		"force_own_label", o.ForceOwnLabel)

	if prev.ForceOwnLabel != o.ForceOwnLabel {
		e.registry.RestoreAll(ctx)
	}
}

// Status is a snapshot for diagnostics.
type Status struct {
	Mode          selection.Mode `json:"mode"`
	Tags          int            `json:"tags"`
	Markers       int            `json:"markers"`
	SiblingLinked bool           `json:"sibling_linked"`
}

// Status returns a diagnostics snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Mode:          e.evaluator.Mode(),
		Tags:          e.registry.Len(),
		Markers:       e.renderer.Len(),
		SiblingLinked: e.bridge.Installed(),
	}
}
