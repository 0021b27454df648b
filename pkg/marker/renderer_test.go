package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalslayer/pkg/host/mockhost"
	"portalslayer/pkg/model"
)

var testConfig = Config{PaneName: "plugin-portal-slayer-pane", PaneZIndex: 650, LayerName: "Portal Slayer"}

type recordingAnnouncer struct {
	ids []string
}

func (a *recordingAnnouncer) Announce(id string, pos model.Position) {
	a.ids = append(a.ids, id)
}

func setupRenderer(t *testing.T, opts *model.BehaviorOptions) (*Renderer, *mockhost.Host) {
	t.Helper()
	h := mockhost.New()
	h.SetReady(true)
	r := New(h, testConfig, func() model.BehaviorOptions { return *opts }, nil)
	return r, h
}

func rec(id, title string) *model.TagRecord {
	return &model.TagRecord{ID: id, Lat: 35.6, Lng: 139.7, Tier: 8, Color: "#FF0000", Title: title}
}

func TestRenderer_EnsureInfra(t *testing.T) {
	h := mockhost.New()
	opts := model.DefaultBehaviorOptions()
	r := New(h, testConfig, func() model.BehaviorOptions { return opts }, nil)

	assert.False(t, r.EnsureInfra(), "host not ready")
	_, ok := r.Draw(rec("a", ""))
	assert.False(t, ok)

	h.SetReady(true)
	require.True(t, r.EnsureInfra())
	pane, ok := h.Pane("plugin-portal-slayer-pane")
	require.True(t, ok)
	assert.Equal(t, 650, pane.ZIndex)
	assert.False(t, pane.PointerEvents)
	assert.NotNil(t, h.Layer("Portal Slayer"))
}

func TestRenderer_OneMarkerPerID(t *testing.T) {
	opts := model.DefaultBehaviorOptions()
	r, h := setupRenderer(t, &opts)

	h1, ok := r.Draw(rec("a", "Shrine"))
	require.True(t, ok)
	h2, ok := r.Draw(rec("a", "Shrine"))
	require.True(t, ok)
	assert.NotEqual(t, h1, h2)

	layer := h.Layer("Portal Slayer")
	markers := layer.MarkersFor("a")
	require.Len(t, markers, 1)
	assert.Equal(t, h2, markers[0].Handle)
	assert.Equal(t, Glyph, markers[0].Spec.Glyph)
	assert.Equal(t, "#FF0000", markers[0].Spec.Color)
	assert.Equal(t, 1, r.Len())

	r.Remove("a")
	r.Remove("a")
	assert.Empty(t, layer.Markers())
	_, ok = r.Handle("a")
	assert.False(t, ok)
}

func TestRenderer_Labels(t *testing.T) {
	tests := []struct {
		name         string
		opts         model.BehaviorOptions
		title        string
		wantLabel    bool
		wantAnnounce bool
	}{
		{"own label", model.BehaviorOptions{ForceOwnLabel: true, LinkToSiblingLabels: true}, "Shrine", true, false},
		{"own label without title", model.BehaviorOptions{ForceOwnLabel: true}, "", false, false},
		{"delegated to sibling", model.BehaviorOptions{ForceOwnLabel: false, LinkToSiblingLabels: true}, "Shrine", false, true},
		{"no label at all", model.BehaviorOptions{}, "Shrine", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			r, h := setupRenderer(t, &opts)
			ann := &recordingAnnouncer{}
			r.SetAnnouncer(ann)

			_, ok := r.Draw(rec("a", tt.title))
			require.True(t, ok)

			m := h.Layer("Portal Slayer").MarkersFor("a")[0]
			if tt.wantLabel {
				require.NotNil(t, m.Spec.Label)
				assert.Equal(t, tt.title, m.Spec.Label.Text)
				assert.Equal(t, "bottom", m.Spec.Label.Direction)
				assert.Equal(t, [2]int{0, 5}, m.Spec.Label.Offset)
			} else {
				assert.Nil(t, m.Spec.Label)
			}
			// The bridge applies the link gate; the renderer only forwards.
			assert.Equal(t, tt.wantAnnounce, len(ann.ids) == 1)
		})
	}
}

func TestRenderer_Interactive(t *testing.T) {
	opts := model.DefaultBehaviorOptions()
	r, h := setupRenderer(t, &opts)

	var clicked []string
	r.OnClick(func(id string) { clicked = append(clicked, id) })

	r.Draw(rec("a", ""))
	layer := h.Layer("Portal Slayer")
	assert.False(t, layer.Click("a"), "markers start non-interactive")

	r.SetInteractive(true)
	r.Draw(rec("b", ""))
	assert.True(t, layer.Click("a"))
	assert.True(t, layer.Click("b"), "future markers inherit interactivity")
	assert.Equal(t, []string{"a", "b"}, clicked)

	r.SetInteractive(false)
	assert.False(t, layer.Click("a"))
	assert.False(t, r.Interactive())
}

func TestRenderer_Clear(t *testing.T) {
	opts := model.DefaultBehaviorOptions()
	r, h := setupRenderer(t, &opts)

	r.Clear()
	r.Draw(rec("a", ""))
	r.Draw(rec("b", ""))
	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, h.Layer("Portal Slayer").Markers())
}
