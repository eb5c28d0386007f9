package models

import (
	"time"

	"github.com/flipscan/internal/types"
)

// Comparable represents one historical sold-item record. Comparables are
// append-only: rows are inserted once and never updated.
type Comparable struct {
	ID          string          `json:"id" db:"id"`
	ProductName string          `json:"productName" db:"product_name"`
	Category    string          `json:"category,omitempty" db:"category"`
	Platform    types.Platform  `json:"platform" db:"platform"`
	SoldPrice   float64         `json:"soldPrice" db:"sold_price"`
	Condition   types.Condition `json:"condition,omitempty" db:"condition"`
	SourceURL   string          `json:"sourceUrl,omitempty" db:"source_url"`
	SoldAt      time.Time       `json:"soldAt" db:"sold_at"`
	RecordedAt  time.Time       `json:"recordedAt" db:"recorded_at"`
}
