package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalslayer/pkg/model"
)

func TestSettings_Get(t *testing.T) {
	ts := setupServer(t)

	got := decode[SettingsResponse](t, ts.do(t, http.MethodGet, "/api/settings", ""))
	assert.Len(t, got.Tiers, model.MaxTier)
	assert.Equal(t, model.TierRule{Active: true, Color: "#FFFF00"}, got.Tiers["7"])
	assert.True(t, got.ProcessEnl)
	assert.True(t, got.ForceNameLabel)
	assert.False(t, got.ClearOnReload)
}

func TestSettings_PartialUpdate(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPut, "/api/settings", `{"tiers":{"5":{"active":true},"8":{"color":"#00FF00"}},"process_res":false,"clear_on_reload":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[SettingsResponse](t, rec)

	assert.Equal(t, model.TierRule{Active: true, Color: "#CCCCCC"}, got.Tiers["5"])
	assert.Equal(t, model.TierRule{Active: true, Color: "#00FF00"}, got.Tiers["8"])
	assert.True(t, got.ProcessEnl, "untouched")
	assert.False(t, got.ProcessRes)
	assert.True(t, got.ClearOnReload)
	assert.True(t, got.LinkPortalNames, "untouched")

	assert.False(t, ts.engine.Factions().ProcessRes)
	assert.True(t, ts.engine.Options().ClearOnReload)
}

func TestSettings_InvalidTierAppliesNothing(t *testing.T) {
	ts := setupServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"tiers":`},
		{"unknown tier", `{"tiers":{"9":{"active":true}}}`},
		{"non numeric tier", `{"tiers":{"eight":{"active":true}}}`},
		{"bad color", `{"tiers":{"5":{"active":true},"6":{"color":"blue"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPut, "/api/settings", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.False(t, ts.engine.Rules().Tiers[5].Active)
}

func TestSettings_ForceNameLabelRedraws(t *testing.T) {
	ts := setupServer(t)
	ts.do(t, http.MethodPut, "/api/tags/a", `{"lat":1,"lng":1,"tier":8,"color":"#FF0000","title":"A"}`)
	layer := ts.host.Layer("Portal Slayer")
	require.NotNil(t, layer.MarkersFor("a")[0].Spec.Label)

	rec := ts.do(t, http.MethodPut, "/api/settings", `{"force_name_label":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, layer.MarkersFor("a")[0].Spec.Label)
}
