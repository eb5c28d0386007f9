package estimate

import (
	"strings"

	"github.com/flipscan/internal/types"
)

// CategoryProfile describes how a category behaves on the resale market
type CategoryProfile struct {
	Name           string
	Keywords       []string
	BaseMultiplier float64 // heuristic market value as a multiple of asking price
	Difficulty     types.ResaleDifficulty
	Shippable      bool
	DemandScore    float64 // 0..10, higher for fast-turnover categories
}

// DefaultCategory is used when no keyword bucket matches
const DefaultCategory = "general"

// categoryProfiles is the fixed category -> keyword-set table. Order matters:
// detection walks the slice and the first matching bucket wins.
var categoryProfiles = []CategoryProfile{
	{
		Name:           "electronics",
		Keywords:       []string{"iphone", "ipad", "macbook", "laptop", "monitor", "camera", "headphones", "speaker", "tablet", "tv", "television", "drone", "gpu", "graphics card"},
		BaseMultiplier: 1.35,
		Difficulty:     types.DifficultyLow,
		Shippable:      true,
		DemandScore:    9,
	},
	{
		Name:           "gaming",
		Keywords:       []string{"playstation", "ps5", "ps4", "xbox", "nintendo", "switch", "gameboy", "console", "controller", "video game"},
		BaseMultiplier: 1.30,
		Difficulty:     types.DifficultyLow,
		Shippable:      true,
		DemandScore:    9,
	},
	{
		Name:           "tools",
		Keywords:       []string{"drill", "saw", "sander", "dewalt", "makita", "milwaukee", "tool set", "wrench", "compressor", "generator"},
		BaseMultiplier: 1.25,
		Difficulty:     types.DifficultyLow,
		Shippable:      true,
		DemandScore:    7,
	},
	{
		Name:           "music",
		Keywords:       []string{"guitar", "amplifier", "amp", "keyboard", "piano", "synth", "drum", "violin", "turntable", "pedal"},
		BaseMultiplier: 1.28,
		Difficulty:     types.DifficultyMedium,
		Shippable:      true,
		DemandScore:    6,
	},
	{
		Name:           "sporting",
		Keywords:       []string{"bike", "bicycle", "kayak", "snowboard", "ski", "golf", "treadmill", "weights", "dumbbell", "paddle board"},
		BaseMultiplier: 1.20,
		Difficulty:     types.DifficultyMedium,
		Shippable:      false,
		DemandScore:    5,
	},
	{
		Name:           "furniture",
		Keywords:       []string{"couch", "sofa", "table", "desk", "chair", "dresser", "bookshelf", "cabinet", "bed frame", "nightstand"},
		BaseMultiplier: 1.15,
		Difficulty:     types.DifficultyHigh,
		Shippable:      false,
		DemandScore:    3,
	},
	{
		Name:           "appliances",
		Keywords:       []string{"refrigerator", "fridge", "washer", "dryer", "dishwasher", "microwave", "oven", "freezer", "air conditioner"},
		BaseMultiplier: 1.18,
		Difficulty:     types.DifficultyHigh,
		Shippable:      false,
		DemandScore:    4,
	},
	{
		Name:           "clothing",
		Keywords:       []string{"jacket", "sneakers", "shoes", "boots", "jeans", "dress", "coat", "handbag", "purse", "watch"},
		BaseMultiplier: 1.22,
		Difficulty:     types.DifficultyMedium,
		Shippable:      true,
		DemandScore:    6,
	},
}

// defaultProfile is the conservative fallback bucket
var defaultProfile = CategoryProfile{
	Name:           DefaultCategory,
	BaseMultiplier: 1.10,
	Difficulty:     types.DifficultyMedium,
	Shippable:      false,
	DemandScore:    4,
}

// heavyItemKeywords raise resale difficulty one level regardless of category
var heavyItemKeywords = []string{
	"sectional", "armoire", "piano", "pool table", "treadmill", "elliptical",
	"safe", "hot tub", "riding mower",
}

// DetectCategory returns the first keyword bucket matching title+description,
// or DefaultCategory when none match.
func DetectCategory(title, description string) string {
	haystack := strings.ToLower(title + " " + description)

	for _, profile := range categoryProfiles {
		for _, keyword := range profile.Keywords {
			if strings.Contains(haystack, keyword) {
				return profile.Name
			}
		}
	}

	return DefaultCategory
}

// ProfileFor returns the profile for a named category, falling back to the
// default profile for unknown names.
func ProfileFor(category string) CategoryProfile {
	name := strings.ToLower(strings.TrimSpace(category))
	for _, profile := range categoryProfiles {
		if profile.Name == name {
			return profile
		}
	}
	return defaultProfile
}

// bumpDifficulty raises difficulty one level for bulky/heavy items
func bumpDifficulty(difficulty types.ResaleDifficulty) types.ResaleDifficulty {
	switch difficulty {
	case types.DifficultyLow:
		return types.DifficultyMedium
	case types.DifficultyMedium:
		return types.DifficultyHigh
	default:
		return types.DifficultyHigh
	}
}

// isHeavyItem reports whether the text names a bulky/heavy item
func isHeavyItem(title, description string) bool {
	haystack := strings.ToLower(title + " " + description)
	for _, keyword := range heavyItemKeywords {
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}
