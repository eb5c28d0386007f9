package models

import (
	"time"

	"github.com/flipscan/internal/types"
)

// QueueItem represents one outbound action on the posting queue.
// Invariant: retry_count <= max_retries; the only re-entrant transition is
// failed -> pending, performed by the retry manager.
type QueueItem struct {
	ID             string            `json:"id" db:"id"`
	Action         types.QueueAction `json:"action" db:"action"`
	ListingID      *string           `json:"listingId,omitempty" db:"listing_id"`
	MessageID      *string           `json:"messageId,omitempty" db:"message_id"`
	TargetPlatform types.Platform    `json:"targetPlatform" db:"target_platform"`
	Payload        string            `json:"payload,omitempty" db:"payload"` // JSON action arguments
	Status         types.QueueStatus `json:"status" db:"status"`
	RetryCount     int               `json:"retryCount" db:"retry_count"`
	MaxRetries     int               `json:"maxRetries" db:"max_retries"`
	ErrorMessage   *string           `json:"errorMessage,omitempty" db:"error_message"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
	StartedAt      *time.Time        `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty" db:"completed_at"`
}

// RetryEligible reports whether a retry transition is currently legal
func (q *QueueItem) RetryEligible() bool {
	return q.Status == types.QueueStatusFailed && q.RetryCount < q.MaxRetries
}
