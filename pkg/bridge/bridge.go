// Package bridge feeds tagged portals to the sibling label plugin.
//
// The sibling owns its own label pass. The bridge registers as an observer of that
// pass and re-announces every tagged portal after it, so tagged portals keep their
// sibling label even when the sibling would otherwise filter them out.
package bridge

import (
	"log/slog"

	"portalslayer/pkg/host"
	"portalslayer/pkg/model"
)

// ListenerKey identifies the bridge's listener on the sibling.
const ListenerKey = "portal-slayer"

// Bridge is inert until Install is called with a sibling.
// It is not safe for concurrent use; the engine serializes access.
type Bridge struct {
	records   func() []*model.TagRecord
	options   func() model.BehaviorOptions
	serialize func(func())
	logger    *slog.Logger

	sibling host.Sibling
	cancel  func()
}

// New creates a bridge. records and options must not block. serialize runs the
// post-update pass in the caller's execution context; nil runs it directly.
func New(records func() []*model.TagRecord, options func() model.BehaviorOptions, serialize func(func())) *Bridge {
	if serialize == nil {
		serialize = func(fn func()) { fn() }
	}
	return &Bridge{
		records:   records,
		options:   options,
		serialize: serialize,
		logger:    slog.With("component", "bridge"),
	}
}

// Install subscribes to the sibling's label updates. Installing again replaces the
// previous subscription, so the listener is never registered twice.
func (b *Bridge) Install(s host.Sibling) bool {
	if s == nil {
		return false
	}
	b.Uninstall()
	b.sibling = s
	b.cancel = s.OnLabelsUpdated(ListenerKey, func() { b.serialize(b.reannounce) })
	b.logger.Info("Linked to sibling label plugin")
	return true
}

// Uninstall removes the subscription.
func (b *Bridge) Uninstall() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.sibling = nil
}

// Installed reports whether a sibling is linked.
func (b *Bridge) Installed() bool {
	return b.sibling != nil
}

// Announce hands one portal to the sibling when label linking is in effect.
func (b *Bridge) Announce(id string, pos model.Position) {
	if b.sibling == nil || !b.options().AnnounceToSibling() {
		return
	}
	b.sibling.AddLabel(id, pos)
}

func (b *Bridge) reannounce() {
	if b.sibling == nil || !b.options().AnnounceToSibling() {
		return
	}
	recs := b.records()
	for _, r := range recs {
		b.sibling.AddLabel(r.ID, r.Position())
	}
	b.logger.Debug("Re-announced tagged portals", "count", len(recs))
}
