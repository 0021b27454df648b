package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_Valid(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{"Origin", Position{0, 0}, true},
		{"Tokyo", Position{35.6812, 139.7671}, true},
		{"LatTooHigh", Position{90.5, 0}, false},
		{"LngTooLow", Position{0, -180.1}, false},
		{"NaN", Position{math.NaN(), 1}, false},
		{"Inf", Position{1, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pos.Valid())
		})
	}
}

func TestPosition_Point(t *testing.T) {
	pt := Position{Lat: 35.1, Lng: 139.2}.Point()
	assert.Equal(t, 139.2, pt.Lon())
	assert.Equal(t, 35.1, pt.Lat())
}

func TestParseFaction(t *testing.T) {
	assert.Equal(t, FactionEnlightened, ParseFaction("ENL"))
	assert.Equal(t, FactionEnlightened, ParseFaction("E"))
	assert.Equal(t, FactionResistance, ParseFaction("resistance"))
	assert.Equal(t, FactionNeutral, ParseFaction("N"))
	assert.Equal(t, FactionNeutral, ParseFaction(""))
}

func TestFactionFilter_Allows(t *testing.T) {
	ff := FactionFilter{ProcessEnl: true, ProcessRes: false}
	assert.True(t, ff.Allows(FactionEnlightened))
	assert.False(t, ff.Allows(FactionResistance))
	assert.False(t, ff.Allows(FactionNeutral))

	all := FactionFilter{ProcessEnl: true, ProcessRes: true}
	assert.False(t, all.Allows(FactionNeutral), "neutral is never allowed")
}

func TestDefaultRuleConfig(t *testing.T) {
	c := DefaultRuleConfig()
	require.Len(t, c.Tiers, MaxTier)
	for tier := 1; tier <= 6; tier++ {
		assert.False(t, c.Tiers[tier].Active, "tier %d", tier)
	}
	assert.Equal(t, TierRule{Active: true, Color: "#FFFF00"}, c.Tiers[7])
	assert.Equal(t, TierRule{Active: true, Color: "#FF0000"}, c.Tiers[8])
	assert.True(t, c.Factions.ProcessEnl)
	assert.True(t, c.Factions.ProcessRes)
}

func TestRuleConfig_FlatJSON(t *testing.T) {
	c := DefaultRuleConfig()
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Contains(t, flat, "7")
	assert.Contains(t, flat, "processEnl")
	assert.JSONEq(t, `{"active":true,"color":"#FFFF00"}`, string(flat["7"]))

	var back RuleConfig
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c, back)
}

func TestRuleConfig_UnmarshalMergesOverDefaults(t *testing.T) {
	c := DefaultRuleConfig()
	err := json.Unmarshal([]byte(`{"3":{"active":true,"color":"#00FF00"},"processRes":false,"future":1}`), &c)
	require.NoError(t, err)

	assert.Equal(t, TierRule{Active: true, Color: "#00FF00"}, c.Tiers[3])
	assert.Equal(t, TierRule{Active: true, Color: "#FF0000"}, c.Tiers[8], "untouched tiers keep defaults")
	assert.True(t, c.Factions.ProcessEnl)
	assert.False(t, c.Factions.ProcessRes)
}

func TestRuleConfig_CloneIsDeep(t *testing.T) {
	c := DefaultRuleConfig()
	cp := c.Clone()
	cp.Tiers[1] = TierRule{Active: true, Color: "#123456"}
	assert.False(t, c.Tiers[1].Active)
}

func TestBehaviorOptions_AnnounceToSibling(t *testing.T) {
	tests := []struct {
		link, force bool
		want        bool
	}{
		{true, false, true},
		{true, true, false},
		{false, false, false},
		{false, true, false},
	}
	for _, tt := range tests {
		o := BehaviorOptions{LinkToSiblingLabels: tt.link, ForceOwnLabel: tt.force}
		assert.Equal(t, tt.want, o.AnnounceToSibling(), "link=%v force=%v", tt.link, tt.force)
	}
}

func TestTagRecord_JSONLayout(t *testing.T) {
	r := &TagRecord{ID: "abc.16", Lat: 35.5, Lng: 139.25, Tier: 8, Color: "#FF0000", Title: "Shrine"}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":35.5,"lng":139.25,"level":8,"color":"#FF0000","title":"Shrine"}`, string(data))

	untitled := &TagRecord{Lat: 1, Lng: 2, Tier: 7, Color: "#FFFF00"}
	data, err = json.Marshal(untitled)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "title")
	assert.Equal(t, "", untitled.DisplayName())
}

func TestTagRecord_Drawable(t *testing.T) {
	assert.True(t, (&TagRecord{Lat: 1, Lng: 2, Color: "#FFF"}).Drawable())
	assert.False(t, (&TagRecord{Lat: 1, Lng: 2}).Drawable())
	assert.False(t, (&TagRecord{Lat: 100, Lng: 2, Color: "#FFF"}).Drawable())
}
