package api

import (
	"net/http"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalslayer/pkg/host"
	"portalslayer/pkg/model"
)

func mockEntity(id, faction string, level float64, title string) host.Entity {
	return host.Entity{
		ID:        id,
		Faction:   model.ParseFaction(faction),
		Level:     level,
		Title:     title,
		HasDetail: level > 0,
		Position:  model.Position{Lat: 35.0, Lng: 139.0},
	}
}

func TestTags_PutGetDelete(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPut, "/api/tags/a", `{"lat":35.5,"lng":139.5,"tier":8,"color":"#FF0000","title":"Shrine"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/tags/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[TagResponse](t, rec)
	assert.Equal(t, TagResponse{ID: "a", Lat: 35.5, Lng: 139.5, Tier: 8, Color: "#FF0000", Title: "Shrine"}, got)
	assert.Len(t, ts.host.Layer("Portal Slayer").MarkersFor("a"), 1)

	rec = ts.do(t, http.MethodDelete, "/api/tags/a", "")
	assert.Equal(t, map[string]bool{"removed": true}, decode[map[string]bool](t, rec))
	rec = ts.do(t, http.MethodDelete, "/api/tags/a", "")
	assert.Equal(t, map[string]bool{"removed": false}, decode[map[string]bool](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/tags/a", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTags_PutInvalid(t *testing.T) {
	ts := setupServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"tier out of range", `{"lat":1,"lng":1,"tier":12,"color":"#FF0000"}`},
		{"missing color", `{"lat":1,"lng":1,"tier":8}`},
		{"bad latitude", `{"lat":91,"lng":1,"tier":8,"color":"#FF0000"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPut, "/api/tags/a", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestTags_ListWithBBox(t *testing.T) {
	ts := setupServer(t)
	ts.do(t, http.MethodPut, "/api/tags/tokyo", `{"lat":35.68,"lng":139.76,"tier":8,"color":"#FF0000"}`)
	ts.do(t, http.MethodPut, "/api/tags/paris", `{"lat":48.85,"lng":2.35,"tier":7,"color":"#FFFF00"}`)

	all := decode[[]TagResponse](t, ts.do(t, http.MethodGet, "/api/tags", ""))
	require.Len(t, all, 2)
	assert.Equal(t, "paris", all[0].ID, "sorted by id")

	japan := decode[[]TagResponse](t, ts.do(t, http.MethodGet, "/api/tags?bbox=129,30,146,46", ""))
	require.Len(t, japan, 1)
	assert.Equal(t, "tokyo", japan[0].ID)

	none := ts.do(t, http.MethodGet, "/api/tags?bbox=0,0,1,1", "")
	assert.Equal(t, "[]\n", none.Body.String())

	for _, bad := range []string{"1,2,3", "a,b,c,d", "10,10,0,0"} {
		rec := ts.do(t, http.MethodGet, "/api/tags?bbox="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestTags_GeoJSON(t *testing.T) {
	ts := setupServer(t)
	ts.do(t, http.MethodPut, "/api/tags/a", `{"lat":35.5,"lng":139.5,"tier":8,"color":"#FF0000","title":"Shrine"}`)

	rec := ts.do(t, http.MethodGet, "/api/tags/geojson", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, "a", f.ID)
	assert.Equal(t, "#FF0000", f.Properties.MustString("color"))
	assert.Equal(t, "Shrine", f.Properties.MustString("title"))
	assert.InDelta(t, 139.5, f.Point().Lon(), 1e-9)
	assert.InDelta(t, 35.5, f.Point().Lat(), 1e-9)
}

func TestTags_ClearAndRestore(t *testing.T) {
	ts := setupServer(t)
	ts.do(t, http.MethodPut, "/api/tags/a", `{"lat":1,"lng":1,"tier":8,"color":"#FF0000"}`)
	ts.do(t, http.MethodPut, "/api/tags/b", `{"lat":1,"lng":1,"tier":8,"color":"#FF0000"}`)

	rec := ts.do(t, http.MethodPost, "/api/tags/restore", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"drawn": 2}, decode[map[string]int](t, rec))

	rec = ts.do(t, http.MethodDelete, "/api/tags", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, ts.engine.Records())
}
