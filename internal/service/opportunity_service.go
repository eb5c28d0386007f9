package service

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/storage"
	"github.com/flipscan/internal/types"
)

// OpportunityRepository interface for opportunity data operations
type OpportunityRepository interface {
	Create(ctx context.Context, opportunity *models.Opportunity) error
	GetByID(ctx context.Context, id string) (*models.Opportunity, error)
	GetByListingID(ctx context.Context, listingID string) (*models.Opportunity, error)
	Update(ctx context.Context, opportunity *models.Opportunity) error
	Delete(ctx context.Context, id string, scoreThreshold int) error
	List(ctx context.Context, status types.OpportunityStatus, limit int) ([]*models.Opportunity, error)
	ProfitSummary(ctx context.Context) (*models.ProfitSummary, error)
}

// OpportunityService tracks flip candidates from identification to resale
type OpportunityService struct {
	repo      OpportunityRepository
	listings  ListingRepository
	threshold int
	logger    *logging.Logger
}

// NewOpportunityService creates a new opportunity service. scoreThreshold is
// the value score at or above which a listing counts as an opportunity.
func NewOpportunityService(repo OpportunityRepository, listings ListingRepository, scoreThreshold int, logger *logging.Logger) *OpportunityService {
	return &OpportunityService{
		repo:      repo,
		listings:  listings,
		threshold: scoreThreshold,
		logger:    logger.WithField("component", "opportunity_service"),
	}
}

// CreateFromListing promotes a listing into a tracked opportunity. The
// repository moves the listing to opportunity status in the same
// transaction; a second promotion of the same listing is a conflict.
func (s *OpportunityService) CreateFromListing(ctx context.Context, listingID, ownerID, notes string) (*models.Opportunity, error) {
	if listingID == "" {
		return nil, errors.NewValidationError("listingId", "must not be empty")
	}

	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, mapStorageError("listing", listingID, err)
	}

	opportunity := &models.Opportunity{
		ID:        uuid.New().String(),
		ListingID: listingID,
		OwnerID:   ownerID,
		Status:    types.OpportunityStatusIdentified,
		Notes:     notes,
	}

	if err := s.repo.Create(ctx, opportunity); err != nil {
		if stderrors.Is(err, storage.ErrDuplicateOpportunity) {
			return nil, errors.NewConflictError("listing is already tracked as an opportunity")
		}
		return nil, mapStorageError("listing", listingID, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"opportunityId": opportunity.ID,
		"listingId":     listingID,
	}).Info("Opportunity created")

	return opportunity, nil
}

// Get retrieves an opportunity by ID
func (s *OpportunityService) Get(ctx context.Context, id string) (*models.Opportunity, error) {
	opportunity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("opportunity", id, err)
	}
	return opportunity, nil
}

// GetByListing retrieves the opportunity tracking a given listing
func (s *OpportunityService) GetByListing(ctx context.Context, listingID string) (*models.Opportunity, error) {
	opportunity, err := s.repo.GetByListingID(ctx, listingID)
	if err != nil {
		return nil, mapStorageError("opportunity", listingID, err)
	}
	return opportunity, nil
}

// UpdateOpportunityInput carries operator edits to an opportunity
type UpdateOpportunityInput struct {
	Status        types.OpportunityStatus `json:"status,omitempty"`
	PurchasePrice *float64                `json:"purchasePrice,omitempty"`
	ResalePrice   *float64                `json:"resalePrice,omitempty"`
	Fees          *float64                `json:"fees,omitempty"`
	Notes         *string                 `json:"notes,omitempty"`
}

var validOpportunityStatuses = map[types.OpportunityStatus]bool{
	types.OpportunityStatusIdentified: true,
	types.OpportunityStatusContacted:  true,
	types.OpportunityStatusPurchased:  true,
	types.OpportunityStatusListed:     true,
	types.OpportunityStatusSold:       true,
}

// Update applies operator edits and recomputes actual profit whenever both
// a purchase and a resale price are known.
func (s *OpportunityService) Update(ctx context.Context, id string, input UpdateOpportunityInput) (*models.Opportunity, error) {
	opportunity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("opportunity", id, err)
	}

	if input.Status != "" {
		if !validOpportunityStatuses[input.Status] {
			return nil, errors.NewValidationError("status", "unknown opportunity status")
		}
		opportunity.Status = input.Status
	}
	if input.PurchasePrice != nil {
		opportunity.PurchasePrice = input.PurchasePrice
	}
	if input.ResalePrice != nil {
		opportunity.ResalePrice = input.ResalePrice
	}
	if input.Fees != nil {
		opportunity.Fees = input.Fees
	}
	if input.Notes != nil {
		opportunity.Notes = *input.Notes
	}

	if opportunity.PurchasePrice != nil && opportunity.ResalePrice != nil {
		fees := 0.0
		if opportunity.Fees != nil {
			fees = *opportunity.Fees
		}
		profit := *opportunity.ResalePrice - *opportunity.PurchasePrice - fees
		opportunity.ActualProfit = &profit
	}

	if err := s.repo.Update(ctx, opportunity); err != nil {
		return nil, mapStorageError("opportunity", id, err)
	}

	return opportunity, nil
}

// Delete untracks an opportunity. The underlying listing is reset so it
// surfaces again in scans.
func (s *OpportunityService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id, s.threshold); err != nil {
		return mapStorageError("opportunity", id, err)
	}
	s.logger.WithField("opportunityId", id).Info("Opportunity deleted")
	return nil
}

// List retrieves opportunities, optionally filtered by status
func (s *OpportunityService) List(ctx context.Context, status types.OpportunityStatus, limit int) ([]*models.Opportunity, error) {
	if status != "" && !validOpportunityStatuses[status] {
		return nil, errors.NewValidationError("status", "unknown opportunity status")
	}
	opportunities, err := s.repo.List(ctx, status, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list opportunities", err)
	}
	return opportunities, nil
}

// Summary aggregates realized economics across all opportunities
func (s *OpportunityService) Summary(ctx context.Context) (*models.ProfitSummary, error) {
	summary, err := s.repo.ProfitSummary(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("summarize opportunities", err)
	}
	return summary, nil
}
