package models

import (
	"time"

	"github.com/flipscan/internal/types"
)

// Listing represents a normalized marketplace listing in the database.
// Identity is (platform, external_id, owner_id); owner_id is '' for
// legacy/shared records.
type Listing struct {
	ID         string         `json:"id" db:"id"`
	Platform   types.Platform `json:"platform" db:"platform"`
	ExternalID string         `json:"externalId" db:"external_id"`
	OwnerID    string         `json:"ownerId,omitempty" db:"owner_id"`

	Title       string          `json:"title" db:"title"`
	Description string          `json:"description,omitempty" db:"description"`
	AskingPrice float64         `json:"askingPrice" db:"asking_price"`
	Condition   types.Condition `json:"condition" db:"condition"`
	Location    string          `json:"location,omitempty" db:"location"`
	Category    string          `json:"category" db:"category"`
	Brand       string          `json:"brand,omitempty" db:"brand"`
	URL         string          `json:"url" db:"url"`
	ImageRefs   []string        `json:"imageRefs,omitempty" db:"image_refs"`
	PostedAt    *time.Time      `json:"postedAt,omitempty" db:"posted_at"`
	ScrapedAt   time.Time       `json:"scrapedAt" db:"scraped_at"`

	// Valuation fields, refreshed on every re-scrape
	EstimatedValue   float64                `json:"estimatedValue" db:"estimated_value"`
	EstimatedLow     float64                `json:"estimatedLow" db:"estimated_low"`
	EstimatedHigh    float64                `json:"estimatedHigh" db:"estimated_high"`
	ProfitPotential  float64                `json:"profitPotential" db:"profit_potential"`
	ProfitLow        float64                `json:"profitLow" db:"profit_low"`
	ProfitHigh       float64                `json:"profitHigh" db:"profit_high"`
	DiscountPercent  float64                `json:"discountPercent" db:"discount_percent"`
	ValueScore       int                    `json:"valueScore" db:"value_score"`
	ResaleDifficulty types.ResaleDifficulty `json:"resaleDifficulty" db:"resale_difficulty"`
	Negotiable       bool                   `json:"negotiable" db:"negotiable"`
	Shippable        bool                   `json:"shippable" db:"shippable"`
	Tags             []string               `json:"tags,omitempty" db:"tags"`
	Reasoning        string                 `json:"reasoning,omitempty" db:"reasoning"`
	ComparableRefs   []string               `json:"comparableRefs,omitempty" db:"comparable_refs"`
	CompConfidence   types.Confidence       `json:"compConfidence,omitempty" db:"comp_confidence"`
	CompSampleSize   int                    `json:"compSampleSize" db:"comp_sample_size"`

	// Operator-owned fields, never touched by re-scrapes
	Status types.ListingStatus `json:"status" db:"status"`
	Notes  string              `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
