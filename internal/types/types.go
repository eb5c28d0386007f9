// Package types provides common type definitions for the flipscan pipeline.
package types

import "time"

// Platform represents a supported secondhand marketplace
type Platform string

const (
	// PlatformCraigslist represents craigslist.org (structured selector scraping)
	PlatformCraigslist Platform = "craigslist"
	// PlatformOfferUp represents offerup.com (structured selector scraping)
	PlatformOfferUp Platform = "offerup"
	// PlatformFacebook represents Facebook Marketplace (agent-driven scraping)
	PlatformFacebook Platform = "facebook"
	// PlatformMercari represents mercari.com (search API)
	PlatformMercari Platform = "mercari"
)

// ListingStatus represents the pipeline state of a listing.
// The system sets the initial status on create; after that it is
// operator-owned and a re-scrape must never change it.
type ListingStatus string

const (
	// ListingStatusNew represents a freshly scraped listing below the opportunity threshold
	ListingStatusNew ListingStatus = "new"
	// ListingStatusOpportunity represents a listing worth pursuing
	ListingStatusOpportunity ListingStatus = "opportunity"
	// ListingStatusPurchased represents a listing the operator has bought
	ListingStatusPurchased ListingStatus = "purchased"
	// ListingStatusListed represents an item re-listed for sale
	ListingStatusListed ListingStatus = "listed"
	// ListingStatusSold represents a completed flip
	ListingStatusSold ListingStatus = "sold"
)

// JobStatus represents the status of a scraper job
type JobStatus string

const (
	// JobStatusPending represents a job created but not yet started
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning represents a job whose adapter is executing
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted represents a finished job (zero results included)
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed represents a job that died on an adapter-level error
	JobStatusFailed JobStatus = "failed"
)

// QueueStatus represents the status of a posting-queue item
type QueueStatus string

const (
	// QueueStatusPending represents an item waiting for an executor
	QueueStatusPending QueueStatus = "pending"
	// QueueStatusRunning represents an item claimed by an executor
	QueueStatusRunning QueueStatus = "running"
	// QueueStatusFailed represents an item whose last attempt failed
	QueueStatusFailed QueueStatus = "failed"
	// QueueStatusDone represents a successfully executed item
	QueueStatusDone QueueStatus = "done"
)

// QueueAction represents the kind of outbound side effect a queue item carries
type QueueAction string

const (
	// ActionSendMessage sends an outbound message to a seller
	ActionSendMessage QueueAction = "send_message"
	// ActionCrossPost cross-posts a listing to another marketplace
	ActionCrossPost QueueAction = "cross_post"
)

// MessageStatus represents the workflow state of an outbound message
type MessageStatus string

const (
	// MessageStatusDraft represents an editable draft
	MessageStatusDraft MessageStatus = "draft"
	// MessageStatusPendingApproval represents a draft awaiting operator approval
	MessageStatusPendingApproval MessageStatus = "pending_approval"
	// MessageStatusSent represents a message handed to the posting queue
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered represents a confirmed delivery
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRejected represents a draft the operator rejected
	MessageStatusRejected MessageStatus = "rejected"
	// MessageStatusFailed represents a message whose delivery failed permanently
	MessageStatusFailed MessageStatus = "failed"
)

// OpportunityStatus represents the acquisition state of an opportunity
type OpportunityStatus string

const (
	// OpportunityStatusIdentified represents a newly created opportunity
	OpportunityStatusIdentified OpportunityStatus = "identified"
	// OpportunityStatusContacted represents an opportunity whose seller was contacted
	OpportunityStatusContacted OpportunityStatus = "contacted"
	// OpportunityStatusPurchased represents an acquired item
	OpportunityStatusPurchased OpportunityStatus = "purchased"
	// OpportunityStatusListed represents an item re-listed for resale
	OpportunityStatusListed OpportunityStatus = "listed"
	// OpportunityStatusSold represents a completed resale
	OpportunityStatusSold OpportunityStatus = "sold"
)

// Condition represents a normalized item condition across marketplaces
type Condition string

const (
	ConditionNew        Condition = "new"
	ConditionLikeNew    Condition = "like_new"
	ConditionVeryGood   Condition = "very_good"
	ConditionGood       Condition = "good"
	ConditionAcceptable Condition = "acceptable"
	ConditionPoor       Condition = "poor"
	// ConditionUnknown is used when the source gives no usable condition text
	ConditionUnknown Condition = "unknown"
)

// Confidence represents how much weight comparable-sales data deserves
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ResaleDifficulty represents how hard a category is to move
type ResaleDifficulty string

const (
	DifficultyLow    ResaleDifficulty = "low"
	DifficultyMedium ResaleDifficulty = "medium"
	DifficultyHigh   ResaleDifficulty = "high"
)

// ScrapeQuery describes one adapter invocation
type ScrapeQuery struct {
	Location       string   `json:"location"`
	Category       string   `json:"category"`
	Keywords       string   `json:"keywords,omitempty"`
	MinPrice       float64  `json:"minPrice,omitempty"`
	MaxPrice       float64  `json:"maxPrice,omitempty"`
	IncludeDetails bool     `json:"includeDetails,omitempty"`
	MaxItems       int      `json:"maxItems,omitempty"`
	ExcludeSold    bool     `json:"excludeSold,omitempty"`
	Conditions     []string `json:"conditions,omitempty"`
}

// RawItem is one extracted marketplace item before normalization
type RawItem struct {
	ExternalID  string     `json:"externalId,omitempty"` // set when the source exposes one
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	URL         string     `json:"url"`
	Location    string     `json:"location,omitempty"`
	Condition   string     `json:"condition,omitempty"` // raw source text, normalized downstream
	ImageURLs   []string   `json:"imageUrls,omitempty"`
	Seller      string     `json:"seller,omitempty"`
	PostedAt    *time.Time `json:"postedAt,omitempty"`
	Index       int        `json:"index"` // position within the scrape, used for fallback IDs
}

// ItemResult is the tagged per-item outcome of an adapter extraction.
// Either Item is set (extraction succeeded) or SkipReason explains why the
// item was dropped. Adapter-level failures are returned as the Scrape error,
// never as an ItemResult.
type ItemResult struct {
	Item       *RawItem `json:"item,omitempty"`
	SkipReason string   `json:"skipReason,omitempty"`
}

// OK reports whether the item was extracted successfully
func (r ItemResult) OK() bool {
	return r.Item != nil
}

// OkItem wraps a successfully extracted item
func OkItem(item *RawItem) ItemResult {
	return ItemResult{Item: item}
}

// SkippedItem records a recoverable per-item extraction failure
func SkippedItem(reason string) ItemResult {
	return ItemResult{SkipReason: reason}
}

// MarketValue is the comparable-sales snapshot handed to the estimator.
// A nil MarketValue means "no usable comps, fall back to heuristics".
type MarketValue struct {
	AveragePrice float64    `json:"averagePrice"`
	Confidence   Confidence `json:"confidence"`
	SampleSize   int        `json:"sampleSize"`
	CompRefs     []string   `json:"compRefs,omitempty"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
