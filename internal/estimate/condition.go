package estimate

import (
	"regexp"
	"strings"

	"github.com/flipscan/internal/types"
)

// conditionPatterns maps marketplace condition descriptions to the standard
// condition set. Order matters: "like new" must match before "new", and
// "brand new" before the bare "new".
var conditionPatterns = []struct {
	pattern   *regexp.Regexp
	condition types.Condition
}{
	{regexp.MustCompile(`\blike new\b`), types.ConditionLikeNew},
	{regexp.MustCompile(`\bbrand new\b`), types.ConditionNew},
	{regexp.MustCompile(`\bnew\b`), types.ConditionNew},
	{regexp.MustCompile(`\bvery good\b`), types.ConditionVeryGood},
	{regexp.MustCompile(`\bgood\b`), types.ConditionGood},
	{regexp.MustCompile(`\bexcellent\b`), types.ConditionVeryGood},
	{regexp.MustCompile(`\bacceptable\b|\bfair\b`), types.ConditionAcceptable},
	{regexp.MustCompile(`\bpoor\b|\bhas flaws\b|\bfor parts\b|\bparts only\b`), types.ConditionPoor},
}

// NormalizeCondition maps a marketplace condition description to the standard
// condition set. Text with no recognizable condition maps to Good; a missing
// description maps to Unknown.
func NormalizeCondition(raw string) types.Condition {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	if trimmed == "" || trimmed == "unknown" {
		return types.ConditionUnknown
	}

	for _, mapping := range conditionPatterns {
		if mapping.pattern.MatchString(trimmed) {
			return mapping.condition
		}
	}

	return types.ConditionGood
}

// conditionMultipliers is the fixed condition -> value multiplier table.
// Unknown condition gets a conservative mid-range multiplier.
var conditionMultipliers = map[types.Condition]float64{
	types.ConditionNew:        1.10,
	types.ConditionLikeNew:    1.00,
	types.ConditionVeryGood:   0.90,
	types.ConditionGood:       0.80,
	types.ConditionAcceptable: 0.65,
	types.ConditionPoor:       0.45,
	types.ConditionUnknown:    0.80,
}

// conditionMultiplier returns the multiplier for a normalized condition
func conditionMultiplier(condition types.Condition) float64 {
	if mult, ok := conditionMultipliers[condition]; ok {
		return mult
	}
	return conditionMultipliers[types.ConditionUnknown]
}
