package models

import (
	"time"

	"github.com/flipscan/internal/types"
)

// Opportunity tracks acquisition and resale economics for one listing.
// listing_id is unique: at most one opportunity per listing.
type Opportunity struct {
	ID            string                  `json:"id" db:"id"`
	ListingID     string                  `json:"listingId" db:"listing_id"`
	OwnerID       string                  `json:"ownerId,omitempty" db:"owner_id"`
	Status        types.OpportunityStatus `json:"status" db:"status"`
	PurchasePrice *float64                `json:"purchasePrice,omitempty" db:"purchase_price"`
	ResalePrice   *float64                `json:"resalePrice,omitempty" db:"resale_price"`
	Fees          *float64                `json:"fees,omitempty" db:"fees"`
	ActualProfit  *float64                `json:"actualProfit,omitempty" db:"actual_profit"`
	Notes         string                  `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time               `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time               `json:"updatedAt" db:"updated_at"`
}

// ProfitSummary aggregates realized economics across opportunities
type ProfitSummary struct {
	TotalOpportunities int     `json:"totalOpportunities"`
	Purchased          int     `json:"purchased"`
	Sold               int     `json:"sold"`
	TotalInvested      float64 `json:"totalInvested"`
	TotalRevenue       float64 `json:"totalRevenue"`
	TotalFees          float64 `json:"totalFees"`
	TotalProfit        float64 `json:"totalProfit"`
}
