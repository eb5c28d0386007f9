// Package service implements the pipeline's business logic on top of the
// storage repositories. Repository dependencies are interfaces so tests can
// substitute in-memory fakes.
package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/estimate"
	"github.com/flipscan/internal/images"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/storage"
	"github.com/flipscan/internal/types"
)

// ListingRepository interface for listing data operations
type ListingRepository interface {
	Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, bool, error)
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	List(ctx context.Context, filter storage.ListingFilter) ([]*models.Listing, error)
	UpdateStatus(ctx context.Context, id string, status types.ListingStatus) error
	UpdateNotes(ctx context.Context, id string, notes string) error
	CountByStatus(ctx context.Context) (map[types.ListingStatus]int, error)
}

// MarketValuer supplies comparable-sales snapshots for the estimator
type MarketValuer interface {
	GetMarketValue(ctx context.Context, productName string) *types.MarketValue
}

// ListingService normalizes scraped items into valued listings
type ListingService struct {
	repo      ListingRepository
	estimator *estimate.Estimator
	market    MarketValuer // nil disables comp lookups
	images    images.Cache // nil disables image resolution
	threshold int
	logger    *logging.Logger
}

// NewListingService creates a new listing service
func NewListingService(
	repo ListingRepository,
	estimator *estimate.Estimator,
	market MarketValuer,
	imageCache images.Cache,
	opportunityThreshold int,
	logger *logging.Logger,
) *ListingService {
	return &ListingService{
		repo:      repo,
		estimator: estimator,
		market:    market,
		images:    imageCache,
		threshold: opportunityThreshold,
		logger:    logger.WithField("component", "listing_service"),
	}
}

// IngestResult is the outcome of normalizing one scraped item
type IngestResult struct {
	Listing *models.Listing
	Created bool
	// Opportunity reports whether the item's score cleared the threshold,
	// independent of the stored (possibly operator-owned) status.
	Opportunity bool
}

// Ingest normalizes one scraped item, values it, and upserts it. The initial
// status follows the value score; on re-scrape the stored operator-owned
// status wins.
func (s *ListingService) Ingest(ctx context.Context, platform types.Platform, ownerID string, item *types.RawItem) (*IngestResult, error) {
	if item == nil {
		return nil, errors.NewValidationError("item", "must not be nil")
	}
	if item.Price <= 0 {
		return nil, errors.NewValidationError("price", "must be positive")
	}

	var market *types.MarketValue
	if s.market != nil {
		market = s.market.GetMarketValue(ctx, item.Title)
	}

	estimation, err := s.estimator.Estimate(estimate.Input{
		Title:       item.Title,
		Description: item.Description,
		AskingPrice: item.Price,
		Condition:   item.Condition,
	}, market)
	if err != nil {
		return nil, fmt.Errorf("estimate item: %w", err)
	}

	status := types.ListingStatusNew
	if estimation.ValueScore >= s.threshold {
		status = types.ListingStatusOpportunity
	}

	listing := &models.Listing{
		ID:         uuid.New().String(),
		Platform:   platform,
		ExternalID: externalID(item),
		OwnerID:    ownerID,

		Title:       item.Title,
		Description: item.Description,
		AskingPrice: item.Price,
		Condition:   estimation.Condition,
		Location:    item.Location,
		Category:    estimation.Category,
		Brand:       estimation.Brand,
		URL:         item.URL,
		ImageRefs:   images.ResolveAll(ctx, s.images, item.ImageURLs),
		PostedAt:    item.PostedAt,
		ScrapedAt:   time.Now().UTC(),

		EstimatedValue:   estimation.EstimatedValue,
		EstimatedLow:     estimation.EstimatedLow,
		EstimatedHigh:    estimation.EstimatedHigh,
		ProfitPotential:  estimation.ProfitPotential,
		ProfitLow:        estimation.ProfitLow,
		ProfitHigh:       estimation.ProfitHigh,
		DiscountPercent:  estimation.DiscountPercent,
		ValueScore:       estimation.ValueScore,
		ResaleDifficulty: estimation.ResaleDifficulty,
		Negotiable:       estimation.Negotiable,
		Shippable:        estimation.Shippable,
		Tags:             estimation.Tags,
		Reasoning:        estimation.Reasoning,
		ComparableRefs:   estimation.ComparableRefs,
		CompConfidence:   estimation.CompConfidence,
		CompSampleSize:   estimation.CompSampleSize,

		Status: status,
	}

	stored, created, err := s.repo.Upsert(ctx, listing)
	if err != nil {
		return nil, errors.NewDatabaseError("upsert listing", err)
	}

	return &IngestResult{
		Listing:     stored,
		Created:     created,
		Opportunity: estimation.ValueScore >= s.threshold,
	}, nil
}

// urlIDPattern matches marketplace numeric post IDs embedded in URLs
var urlIDPattern = regexp.MustCompile(`(\d{6,})`)

// externalID resolves a stable per-platform item identity: the source's own
// ID when present, a numeric ID mined from the URL otherwise, and a content
// hash as the last resort.
func externalID(item *types.RawItem) string {
	if item.ExternalID != "" {
		return item.ExternalID
	}
	if match := urlIDPattern.FindString(item.URL); match != "" {
		return match
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d", item.URL, item.Title, item.Index)
	return fmt.Sprintf("h%016x", h.Sum64())
}

// Get retrieves a listing by ID
func (s *ListingService) Get(ctx context.Context, id string) (*models.Listing, error) {
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("listing", id, err)
	}
	return listing, nil
}

// List retrieves listings matching the filter
func (s *ListingService) List(ctx context.Context, filter storage.ListingFilter) ([]*models.Listing, error) {
	listings, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.NewDatabaseError("list listings", err)
	}
	return listings, nil
}

// validListingStatuses are the operator-settable listing states
var validListingStatuses = map[types.ListingStatus]bool{
	types.ListingStatusNew:         true,
	types.ListingStatusOpportunity: true,
	types.ListingStatusPurchased:   true,
	types.ListingStatusListed:      true,
	types.ListingStatusSold:        true,
}

// SetStatus updates the operator-owned status field
func (s *ListingService) SetStatus(ctx context.Context, id string, status types.ListingStatus) error {
	if !validListingStatuses[status] {
		return errors.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return mapStorageError("listing", id, err)
	}
	return nil
}

// SetNotes updates the operator-owned notes field
func (s *ListingService) SetNotes(ctx context.Context, id string, notes string) error {
	if err := s.repo.UpdateNotes(ctx, id, notes); err != nil {
		return mapStorageError("listing", id, err)
	}
	return nil
}

// Stats returns listing counts grouped by status
func (s *ListingService) Stats(ctx context.Context) (map[types.ListingStatus]int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("count listings", err)
	}
	return counts, nil
}
