package llm

import "strings"

// ModelCost is USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the USD cost of one call.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// LookupCost returns the pricing for a model ID, or nil if unknown.
// OpenRouter IDs such as "google/gemini-2.5-flash" are priced as the
// underlying model; dated snapshots fall back to their family.
func LookupCost(modelID string) *ModelCost {
	id := strings.ToLower(modelID)
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	if c, ok := modelCosts[id]; ok {
		return &c
	}
	for _, family := range costFamilies {
		if strings.HasPrefix(id, family) {
			c := modelCosts[family]
			return &c
		}
	}
	return nil
}

// modelCosts covers the models the tutor is configured with out of the box
// plus their common alternatives. Prices from models.dev, 2026-02.
var modelCosts = map[string]ModelCost{
	"claude-haiku-4-5":  {1, 5},
	"claude-sonnet-4":   {3, 15},
	"claude-sonnet-4-5": {3, 15},
	"claude-opus-4-1":   {15, 75},
	"claude-opus-4-5":   {5, 25},

	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-5":        {1.25, 10},
	"gpt-5-mini":   {0.25, 2},
	"gpt-5-nano":   {0.05, 0.4},
	"o4-mini":      {1.1, 4.4},

	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},
}

// costFamilies lists modelCosts keys that dated IDs are matched against,
// longest first so "gpt-4o-mini-2024-07-18" does not price as gpt-4o.
var costFamilies = []string{
	"gemini-2.5-flash-lite",
	"claude-sonnet-4-5",
	"claude-haiku-4-5",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"claude-opus-4-5",
	"claude-opus-4-1",
	"claude-sonnet-4",
	"gemini-2.5-pro",
	"gpt-4.1-mini",
	"gpt-4.1-nano",
	"gpt-4o-mini",
	"gpt-5-mini",
	"gpt-5-nano",
	"o4-mini",
	"gpt-4.1",
	"gpt-4o",
	"gpt-5",
}
