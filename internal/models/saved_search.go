package models

import (
	"time"

	"github.com/flipscan/internal/types"
)

// SavedSearch represents a recurring scrape the scheduler re-runs on a cron
// schedule.
type SavedSearch struct {
	ID        string         `json:"id" db:"id"`
	OwnerID   string         `json:"ownerId,omitempty" db:"owner_id"`
	Platform  types.Platform `json:"platform" db:"platform"`
	Location  string         `json:"location" db:"location"`
	Category  string         `json:"category" db:"category"`
	Keywords  string         `json:"keywords,omitempty" db:"keywords"`
	MinPrice  float64        `json:"minPrice,omitempty" db:"min_price"`
	MaxPrice  float64        `json:"maxPrice,omitempty" db:"max_price"`
	Enabled   bool           `json:"enabled" db:"enabled"`
	LastRunAt *time.Time     `json:"lastRunAt,omitempty" db:"last_run_at"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// Query converts the saved search into an adapter query
func (s *SavedSearch) Query() types.ScrapeQuery {
	return types.ScrapeQuery{
		Location: s.Location,
		Category: s.Category,
		Keywords: s.Keywords,
		MinPrice: s.MinPrice,
		MaxPrice: s.MaxPrice,
	}
}
