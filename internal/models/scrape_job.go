package models

import (
	"time"

	"github.com/flipscan/internal/types"
)

// ScrapeJob represents one scraper job run in the database.
// Lifecycle is pending -> running -> {completed, failed}; terminal states
// are immutable.
type ScrapeJob struct {
	ID                 string            `json:"id" db:"id"`
	Platform           types.Platform    `json:"platform" db:"platform"`
	OwnerID            string            `json:"ownerId,omitempty" db:"owner_id"`
	Location           string            `json:"location" db:"location"`
	Category           string            `json:"category" db:"category"`
	Keywords           string            `json:"keywords,omitempty" db:"keywords"`
	MinPrice           float64           `json:"minPrice,omitempty" db:"min_price"`
	MaxPrice           float64           `json:"maxPrice,omitempty" db:"max_price"`
	Status             types.JobStatus   `json:"status" db:"status"`
	ListingsFound      int               `json:"listingsFound" db:"listings_found"`
	OpportunitiesFound int               `json:"opportunitiesFound" db:"opportunities_found"`
	ItemsSkipped       int               `json:"itemsSkipped" db:"items_skipped"`
	ErrorMessage       *string           `json:"errorMessage,omitempty" db:"error_message"`
	StartedAt          time.Time         `json:"startedAt" db:"started_at"`
	CompletedAt        *time.Time        `json:"completedAt,omitempty" db:"completed_at"`
}

// Terminal reports whether the job has reached an immutable state
func (j *ScrapeJob) Terminal() bool {
	return j.Status == types.JobStatusCompleted || j.Status == types.JobStatusFailed
}
