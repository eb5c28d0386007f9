// Package estimate implements the value-estimation engine: category
// detection, condition/brand multipliers, and the composite valueScore.
// Estimation is deterministic: identical inputs and an identical
// comparable-sales snapshot always produce identical output.
package estimate

import (
	"fmt"
	"math"
	"strings"

	"github.com/flipscan/internal/config"
	flipErrors "github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/types"
)

// Input is one listing to estimate
type Input struct {
	Title       string
	Description string
	AskingPrice float64
	Condition   string // raw marketplace text, normalized internally
	Category    string // empty triggers keyword-bucket detection
}

// Estimation is the full valuation of one listing
type Estimation struct {
	Category         string                 `json:"category"`
	Brand            string                 `json:"brand,omitempty"`
	Condition        types.Condition        `json:"condition"`
	EstimatedValue   float64                `json:"estimatedValue"`
	EstimatedLow     float64                `json:"estimatedLow"`
	EstimatedHigh    float64                `json:"estimatedHigh"`
	DiscountPercent  float64                `json:"discountPercent"`
	ProfitPotential  float64                `json:"profitPotential"`
	ProfitLow        float64                `json:"profitLow"`
	ProfitHigh       float64                `json:"profitHigh"`
	ValueScore       int                    `json:"valueScore"`
	ResaleDifficulty types.ResaleDifficulty `json:"resaleDifficulty"`
	Negotiable       bool                   `json:"negotiable"`
	Shippable        bool                   `json:"shippable"`
	Tags             []string               `json:"tags,omitempty"`
	Reasoning        string                 `json:"reasoning"`
	NegotiationMsg   string                 `json:"negotiationMessage"`
	CompConfidence   types.Confidence       `json:"compConfidence,omitempty"`
	CompSampleSize   int                    `json:"compSampleSize"`
	ComparableRefs   []string               `json:"comparableRefs,omitempty"`
}

// Weights holds the valueScore weighting constants. The exact numbers are
// tuned configuration; the algorithm guarantees score is monotonic in
// discount, penalized by resale difficulty, and boosted by comp confidence.
type Weights struct {
	DiscountWeight    float64
	DemandWeight      float64
	DifficultyPenalty map[types.ResaleDifficulty]float64
	ConfidenceBonus   map[types.Confidence]float64
	BrandBoost        float64 // market-value multiplier for a recognized brand
	ModelBoost        float64 // additional multiplier when a model token is present
}

// DefaultWeights returns the default scoring constants
func DefaultWeights() Weights {
	return Weights{
		DiscountWeight: 1.2,
		DemandWeight:   1.0,
		DifficultyPenalty: map[types.ResaleDifficulty]float64{
			types.DifficultyLow:    0,
			types.DifficultyMedium: 8,
			types.DifficultyHigh:   18,
		},
		ConfidenceBonus: map[types.Confidence]float64{
			types.ConfidenceHigh:   10,
			types.ConfidenceMedium: 5,
			types.ConfidenceLow:    2,
		},
		BrandBoost: 1.15,
		ModelBoost: 1.05,
	}
}

// Estimator computes listing valuations
type Estimator struct {
	cfg     config.EstimatorConfig
	weights Weights
}

// NewEstimator creates an estimator with the given tunables
func NewEstimator(cfg config.EstimatorConfig, weights Weights) *Estimator {
	return &Estimator{cfg: cfg, weights: weights}
}

// Estimate values one listing. A nil market value means no usable comps;
// the heuristic market value is used instead and comp confidence is absent.
func (e *Estimator) Estimate(in Input, market *types.MarketValue) (*Estimation, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, flipErrors.NewValidationError("title", "must not be empty")
	}
	if in.AskingPrice <= 0 {
		return nil, flipErrors.NewValidationError("askingPrice", "must be positive")
	}

	category := in.Category
	if strings.TrimSpace(category) == "" {
		category = DetectCategory(in.Title, in.Description)
	}
	profile := ProfileFor(category)

	brand := ExtractBrand(in.Title, in.Description)
	condition := NormalizeCondition(in.Condition)

	// Heuristic base market value: category multiplier over asking price,
	// adjusted for brand/model recognition and condition.
	brandAdj := 1.0
	if brand != "" {
		brandAdj = e.weights.BrandBoost
		if hasModelToken(in.Title) {
			brandAdj *= e.weights.ModelBoost
		}
	}
	heuristic := in.AskingPrice * profile.BaseMultiplier * brandAdj * conditionMultiplier(condition)

	est := &Estimation{
		Category:       profile.Name,
		Brand:          brand,
		Condition:      condition,
		CompSampleSize: 0,
	}

	// Comps supersede the heuristic point estimate when available.
	value := heuristic
	if market != nil && market.SampleSize > 0 {
		value = market.AveragePrice
		est.CompConfidence = market.Confidence
		est.CompSampleSize = market.SampleSize
		est.ComparableRefs = market.CompRefs
	}

	est.EstimatedValue = round2(value)
	est.EstimatedLow = round2(value * (1 - e.cfg.RangeBandPct))
	est.EstimatedHigh = round2(value * (1 + e.cfg.RangeBandPct))

	// Economics
	if value > 0 {
		discount := (value - in.AskingPrice) / value * 100
		if discount < 0 {
			discount = 0
		}
		est.DiscountPercent = round2(discount)
	}
	fee := 1 - e.cfg.MarketplaceFeePct
	est.ProfitPotential = round2(est.EstimatedValue*fee - in.AskingPrice)
	est.ProfitLow = round2(est.EstimatedLow*fee - in.AskingPrice)
	est.ProfitHigh = round2(est.EstimatedHigh*fee - in.AskingPrice)

	// Difficulty and category-derived flags
	difficulty := profile.Difficulty
	if isHeavyItem(in.Title, in.Description) {
		difficulty = bumpDifficulty(difficulty)
	}
	est.ResaleDifficulty = difficulty
	est.Shippable = profile.Shippable && difficulty != types.DifficultyHigh
	est.Negotiable = !priceIsFirm(in.Title, in.Description)

	est.ValueScore = e.score(est.DiscountPercent, difficulty, profile.DemandScore, est.CompConfidence)

	est.Tags = e.buildTags(est)
	est.Reasoning = e.buildReasoning(in, est, market)
	est.NegotiationMsg = e.buildNegotiationMessage(in, est)

	return est, nil
}

// score combines discount (primary driver), demand, difficulty penalty, and
// comp-confidence bonus, clamped to [0,100].
func (e *Estimator) score(discountPercent float64, difficulty types.ResaleDifficulty, demandScore float64, confidence types.Confidence) int {
	score := discountPercent * e.weights.DiscountWeight
	score += demandScore * e.weights.DemandWeight
	score -= e.weights.DifficultyPenalty[difficulty]
	if confidence != "" {
		score += e.weights.ConfidenceBonus[confidence]
	}

	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

// buildTags derives the listing's tag set
func (e *Estimator) buildTags(est *Estimation) []string {
	tags := []string{est.Category, string(est.Condition)}
	if est.Brand != "" {
		tags = append(tags, est.Brand)
	}
	if est.DiscountPercent >= 40 {
		tags = append(tags, "high-margin")
	}
	if est.Shippable {
		tags = append(tags, "ship-friendly")
	}
	if est.CompSampleSize > 0 {
		tags = append(tags, "comp-backed")
	}
	return tags
}

// buildReasoning produces the human-readable valuation summary
func (e *Estimator) buildReasoning(in Input, est *Estimation, market *types.MarketValue) string {
	var b strings.Builder

	if market != nil && market.SampleSize > 0 {
		fmt.Fprintf(&b, "Market value $%.2f from %d comparable sales (%s confidence). ",
			market.AveragePrice, market.SampleSize, market.Confidence)
	} else {
		fmt.Fprintf(&b, "Heuristic market value $%.2f (%s, %s condition, no comparable sales). ",
			est.EstimatedValue, est.Category, est.Condition)
	}

	fmt.Fprintf(&b, "Asking $%.2f is %.0f%% below market; projected profit $%.2f after fees.",
		in.AskingPrice, est.DiscountPercent, est.ProfitPotential)

	if est.ResaleDifficulty == types.DifficultyHigh {
		b.WriteString(" Expect slow turnover: bulky or low-demand category.")
	}

	return b.String()
}

// buildNegotiationMessage produces the opening purchase message template
func (e *Estimator) buildNegotiationMessage(in Input, est *Estimation) string {
	if !est.Negotiable {
		return fmt.Sprintf("Hi! Is the %s still available? I can pick it up today and pay the full $%.0f in cash.",
			in.Title, in.AskingPrice)
	}

	offer := math.Floor(in.AskingPrice * e.cfg.NegotiationOfferPct)
	return fmt.Sprintf("Hi! Is the %s still available? Would you take $%.0f? I can pick it up today and pay cash.",
		in.Title, offer)
}

// priceIsFirm detects "firm price" language in the listing text
func priceIsFirm(title, description string) bool {
	haystack := strings.ToLower(title + " " + description)
	return strings.Contains(haystack, "firm") || strings.Contains(haystack, "no lowball")
}

// round2 rounds to cents
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
