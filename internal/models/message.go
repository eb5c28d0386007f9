package models

import (
	"time"

	"github.com/flipscan/internal/types"
)

// Message represents an outbound or inbound message, optionally tied to a
// listing. Only draft / pending_approval messages are mutable; sent and
// delivered are terminal from the API's perspective.
type Message struct {
	ID        string              `json:"id" db:"id"`
	ListingID *string             `json:"listingId,omitempty" db:"listing_id"`
	OwnerID   string              `json:"ownerId,omitempty" db:"owner_id"`
	Direction string              `json:"direction" db:"direction"` // outbound, inbound
	Body      string              `json:"body" db:"body"`
	Status    types.MessageStatus `json:"status" db:"status"`
	CreatedAt time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time           `json:"updatedAt" db:"updated_at"`
}

// Mutable reports whether approve/edit/reject operations are legal
func (m *Message) Mutable() bool {
	return m.Status == types.MessageStatusDraft || m.Status == types.MessageStatusPendingApproval
}
