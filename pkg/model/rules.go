package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MaxTier is the highest portal level a rule can be configured for.
const MaxTier = 8

// TierRule decides whether portals of one level are tagged, and with which color.
type TierRule struct {
	Active bool   `json:"active"`
	Color  string `json:"color"`
}

// FactionFilter enables tagging per non-neutral faction.
// Neutral portals are never tagged regardless of this filter.
type FactionFilter struct {
	ProcessEnl bool `json:"processEnl"`
	ProcessRes bool `json:"processRes"`
}

// Allows reports whether portals owned by f may be tagged.
func (ff FactionFilter) Allows(f Faction) bool {
	switch f {
	case FactionEnlightened:
		return ff.ProcessEnl
	case FactionResistance:
		return ff.ProcessRes
	default:
		return false
	}
}

// RuleConfig holds the per-tier rules and the faction filter.
// It is persisted as one flat object: tier numbers as keys next to the faction flags.
type RuleConfig struct {
	Tiers    map[int]TierRule
	Factions FactionFilter
}

// DefaultRuleConfig returns the rules used when nothing is persisted:
// only the two highest tiers are active.
func DefaultRuleConfig() RuleConfig {
	tiers := make(map[int]TierRule, MaxTier)
	for t := 1; t <= MaxTier; t++ {
		tiers[t] = TierRule{Active: false, Color: "#CCCCCC"}
	}
	tiers[7] = TierRule{Active: true, Color: "#FFFF00"}
	tiers[8] = TierRule{Active: true, Color: "#FF0000"}

	return RuleConfig{
		Tiers:    tiers,
		Factions: FactionFilter{ProcessEnl: true, ProcessRes: true},
	}
}

// Rule returns the rule for tier t. Unknown tiers are reported as not found.
func (c RuleConfig) Rule(t int) (TierRule, bool) {
	r, ok := c.Tiers[t]
	return r, ok
}

// Clone returns a deep copy.
func (c RuleConfig) Clone() RuleConfig {
	tiers := make(map[int]TierRule, len(c.Tiers))
	for k, v := range c.Tiers {
		tiers[k] = v
	}
	return RuleConfig{Tiers: tiers, Factions: c.Factions}
}

// MarshalJSON writes the flat layout {"1":{...},...,"processEnl":true,"processRes":true}.
func (c RuleConfig) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.Tiers)+2)
	for t, r := range c.Tiers {
		flat[strconv.Itoa(t)] = r
	}
	flat["processEnl"] = c.Factions.ProcessEnl
	flat["processRes"] = c.Factions.ProcessRes
	return json.Marshal(flat)
}

// UnmarshalJSON merges the flat layout over the receiver.
// Keys present in data replace the receiver's entries, everything else is kept.
func (c *RuleConfig) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if c.Tiers == nil {
		c.Tiers = make(map[int]TierRule)
	}

	for key, raw := range flat {
		switch key {
		case "processEnl":
			if err := json.Unmarshal(raw, &c.Factions.ProcessEnl); err != nil {
				return fmt.Errorf("processEnl: %w", err)
			}
		case "processRes":
			if err := json.Unmarshal(raw, &c.Factions.ProcessRes); err != nil {
				return fmt.Errorf("processRes: %w", err)
			}
		default:
			t, err := strconv.Atoi(key)
			if err != nil {
				// Unknown keys from newer releases are ignored.
				continue
			}
			var r TierRule
			if err := json.Unmarshal(raw, &r); err != nil {
				return fmt.Errorf("tier %d: %w", t, err)
			}
			c.Tiers[t] = r
		}
	}
	return nil
}

// BehaviorOptions are the operator toggles.
type BehaviorOptions struct {
	ClearOnReload       bool `json:"clearOnReload"`
	LinkToSiblingLabels bool `json:"linkPortalNames"`
	ForceOwnLabel       bool `json:"forceNameLabel"`
}

// DefaultBehaviorOptions returns the options used when nothing is persisted.
func DefaultBehaviorOptions() BehaviorOptions {
	return BehaviorOptions{
		ClearOnReload:       false,
		LinkToSiblingLabels: true,
		ForceOwnLabel:       true,
	}
}

// AnnounceToSibling reports whether tagged portals should be fed to the sibling label plugin.
// The own label and the sibling link are mutually exclusive; the own label wins.
func (o BehaviorOptions) AnnounceToSibling() bool {
	return o.LinkToSiblingLabels && !o.ForceOwnLabel
}
