package estimate

import (
	"regexp"
	"strings"
)

// recognizedBrands is the fixed table of brands that move the needle on
// resale value. All lowercase; matching is case-insensitive.
var recognizedBrands = []string{
	// electronics
	"apple", "samsung", "sony", "lg", "bose", "canon", "nikon", "dell", "lenovo",
	// gaming
	"nintendo", "playstation", "xbox",
	// tools
	"dewalt", "makita", "milwaukee", "bosch", "ryobi",
	// music
	"fender", "gibson", "yamaha", "roland", "korg",
	// sporting
	"trek", "specialized", "cannondale", "peloton",
	// furniture
	"herman miller", "west elm", "ikea",
	// clothing
	"nike", "adidas", "patagonia", "north face", "levi",
}

// modelPattern matches model-number-looking tokens (e.g. "WH-1000XM4",
// "DCD771C2", "A2338"): letters and digits mixed in one token.
var modelPattern = regexp.MustCompile(`\b[A-Za-z]+[-]?\d{2,}[A-Za-z0-9-]*\b`)

// ExtractBrand returns the first recognized brand found in the given texts,
// checked in order. Empty string when none match.
func ExtractBrand(texts ...string) string {
	for _, text := range texts {
		lowered := strings.ToLower(text)
		for _, brand := range recognizedBrands {
			if strings.Contains(lowered, brand) {
				return brand
			}
		}
	}
	return ""
}

// hasModelToken reports whether the title carries a model-number pattern,
// which raises confidence that the item is a specific, resellable product.
func hasModelToken(title string) bool {
	return modelPattern.MatchString(title)
}
