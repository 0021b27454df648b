package mockhost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalslayer/pkg/config"
	"portalslayer/pkg/host"
	"portalslayer/pkg/model"
)

var _ host.Runtime = (*Host)(nil)

func TestHost_PaneRequiresReady(t *testing.T) {
	h := New()
	pane := host.PaneSpec{Name: "p", ZIndex: 650}

	assert.False(t, h.EnsurePane(pane))
	_, ok := h.LayerGroup("L", "p")
	assert.False(t, ok)

	h.SetReady(true)
	require.True(t, h.EnsurePane(pane))
	l1, ok := h.LayerGroup("L", "p")
	require.True(t, ok)
	l2, _ := h.LayerGroup("L", "p")
	assert.Same(t, l1, l2, "layer group is created once")

	_, ok = h.LayerGroup("other", "missing-pane")
	assert.False(t, ok)
}

func TestLayer_ClickOnlyWhenInteractive(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.EnsurePane(host.PaneSpec{Name: "p"})
	lg, _ := h.LayerGroup("L", "p")

	clicks := 0
	hd := lg.AddMarker(host.MarkerSpec{ID: "a"}, func() { clicks++ })

	assert.False(t, h.Layer("L").Click("a"))
	lg.SetInteractive(hd, true)
	assert.True(t, h.Layer("L").Click("a"))
	assert.Equal(t, 1, clicks)

	lg.Clear()
	assert.Empty(t, h.Layer("L").Markers())
	assert.Equal(t, 1, h.Layer("L").Clears())
}

func TestHost_SelectionReplaceByKey(t *testing.T) {
	h := New()
	var got []string
	h.Subscribe("k", func(ctx context.Context, ev host.SelectionEvent) { got = append(got, "first:"+ev.ID) })
	h.Subscribe("k", func(ctx context.Context, ev host.SelectionEvent) { got = append(got, "second:"+ev.ID) })
	assert.Equal(t, 1, h.Subscribers())

	h.Select(context.Background(), "p1")
	assert.Equal(t, []string{"second:p1"}, got)

	h.Unsubscribe("k")
	h.Select(context.Background(), "p2")
	assert.Len(t, got, 1)
}

func TestHost_OnReady(t *testing.T) {
	h := New()
	fired := 0
	cancel := h.OnReady("k", func() { fired++ })

	h.SetReady(true)
	h.SetReady(false)
	assert.Equal(t, 1, fired)

	cancel()
	h.SetReady(true)
	assert.Equal(t, 1, fired)
}

func TestSibling_UpdateRunsListeners(t *testing.T) {
	s := NewSibling()
	s.AddLabel("stale", model.Position{})
	cancel := s.OnLabelsUpdated("k", func() { s.AddLabel("fresh", model.Position{}) })

	s.Update()
	assert.Equal(t, []string{"fresh"}, s.Labels())

	cancel()
	assert.Equal(t, 0, s.Listeners())
}

func TestFromConfig(t *testing.T) {
	h := FromConfig(config.MockHostConfig{Portals: []config.MockPortal{
		{ID: "p1", Title: "Shrine", Faction: "ENL", Level: 8, Lat: 35, Lng: 139},
		{ID: "p2", Faction: "neutral"},
	}})

	assert.True(t, h.Ready())
	e, ok := h.Entity("p1")
	require.True(t, ok)
	assert.Equal(t, model.FactionEnlightened, e.Faction)
	assert.Equal(t, 8, e.Tier())

	e2, _ := h.Entity("p2")
	assert.False(t, e2.HasDetail)

	_, ok = h.Sibling()
	assert.True(t, ok)
}

func TestHost_OnSibling(t *testing.T) {
	h := New()
	calls := 0
	cancel := h.OnSibling("k", func() { calls++ })

	h.SetSibling(NewSibling())
	assert.Equal(t, 1, calls)
	h.SetSibling(nil)
	assert.Equal(t, 1, calls, "removing the sibling does not notify")

	cancel()
	h.SetSibling(NewSibling())
	assert.Equal(t, 1, calls)
}
