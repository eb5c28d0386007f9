package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/storage"
	"github.com/flipscan/internal/types"
)

// fakeOpportunityRepo is an in-memory OpportunityRepository
type fakeOpportunityRepo struct {
	mu            sync.Mutex
	byID          map[string]*models.Opportunity
	listings      *fakeListingRepo
	lastThreshold int
}

func newFakeOpportunityRepo(listings *fakeListingRepo) *fakeOpportunityRepo {
	return &fakeOpportunityRepo{byID: map[string]*models.Opportunity{}, listings: listings}
}

func (f *fakeOpportunityRepo) Create(ctx context.Context, opportunity *models.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.ListingID == opportunity.ListingID {
			return storage.ErrDuplicateOpportunity
		}
	}
	copied := *opportunity
	f.byID[opportunity.ID] = &copied
	return f.listings.UpdateStatus(ctx, opportunity.ListingID, types.ListingStatusOpportunity)
}

func (f *fakeOpportunityRepo) GetByID(ctx context.Context, id string) (*models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opportunity, ok := f.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *opportunity
	return &copied, nil
}

func (f *fakeOpportunityRepo) GetByListingID(ctx context.Context, listingID string) (*models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, opportunity := range f.byID {
		if opportunity.ListingID == listingID {
			copied := *opportunity
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeOpportunityRepo) Update(ctx context.Context, opportunity *models.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[opportunity.ID]; !ok {
		return storage.ErrNotFound
	}
	copied := *opportunity
	f.byID[opportunity.ID] = &copied
	return nil
}

func (f *fakeOpportunityRepo) Delete(ctx context.Context, id string, scoreThreshold int) error {
	f.mu.Lock()
	opportunity, ok := f.byID[id]
	if !ok {
		f.mu.Unlock()
		return storage.ErrNotFound
	}
	delete(f.byID, id)
	f.lastThreshold = scoreThreshold
	listingID := opportunity.ListingID
	f.mu.Unlock()

	listing, err := f.listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	status := types.ListingStatusNew
	if listing.ValueScore >= scoreThreshold {
		status = types.ListingStatusOpportunity
	}
	return f.listings.UpdateStatus(ctx, listingID, status)
}

func (f *fakeOpportunityRepo) List(ctx context.Context, status types.OpportunityStatus, limit int) ([]*models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Opportunity
	for _, opportunity := range f.byID {
		if status == "" || opportunity.Status == status {
			copied := *opportunity
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeOpportunityRepo) ProfitSummary(ctx context.Context) (*models.ProfitSummary, error) {
	return &models.ProfitSummary{}, nil
}

func newOpportunityFixture() (*OpportunityService, *fakeOpportunityRepo, *fakeListingRepo) {
	listings := newFakeListingRepo()
	repo := newFakeOpportunityRepo(listings)
	svc := NewOpportunityService(repo, listings, 70, testLogger())
	return svc, repo, listings
}

func scoredListing(score int) *models.Listing {
	return &models.Listing{
		ID:          uuid.New().String(),
		Platform:    types.PlatformCraigslist,
		Title:       "DeWalt table saw",
		AskingPrice: 200,
		ValueScore:  score,
		Status:      types.ListingStatusOpportunity,
	}
}

func TestCreateFromListing(t *testing.T) {
	svc, _, listings := newOpportunityFixture()
	listing := listings.add(scoredListing(85))

	opportunity, err := svc.CreateFromListing(context.Background(), listing.ID, "op-1", "looks clean")
	if err != nil {
		t.Fatalf("CreateFromListing: %v", err)
	}
	if opportunity.Status != types.OpportunityStatusIdentified {
		t.Errorf("Status = %q, want identified", opportunity.Status)
	}
	if opportunity.ListingID != listing.ID {
		t.Errorf("ListingID = %q, want %q", opportunity.ListingID, listing.ID)
	}
}

func TestCreateFromListingDuplicateIsConflict(t *testing.T) {
	svc, _, listings := newOpportunityFixture()
	listing := listings.add(scoredListing(85))

	if _, err := svc.CreateFromListing(context.Background(), listing.ID, "op-1", ""); err != nil {
		t.Fatalf("first CreateFromListing: %v", err)
	}

	_, err := svc.CreateFromListing(context.Background(), listing.ID, "op-1", "")
	if got := errCategory(t, err); got != errors.CategoryConflict {
		t.Errorf("category = %q, want conflict", got)
	}
}

func TestCreateFromListingUnknownListing(t *testing.T) {
	svc, _, _ := newOpportunityFixture()

	_, err := svc.CreateFromListing(context.Background(), "missing", "op-1", "")
	if got := errCategory(t, err); got != errors.CategoryNotFound {
		t.Errorf("category = %q, want not_found", got)
	}
}

func TestUpdateComputesActualProfit(t *testing.T) {
	svc, _, listings := newOpportunityFixture()
	listing := listings.add(scoredListing(85))

	opportunity, err := svc.CreateFromListing(context.Background(), listing.ID, "op-1", "")
	if err != nil {
		t.Fatalf("CreateFromListing: %v", err)
	}

	purchase, resale, fees := 150.0, 300.0, 36.0
	updated, err := svc.Update(context.Background(), opportunity.ID, UpdateOpportunityInput{
		Status:        types.OpportunityStatusSold,
		PurchasePrice: &purchase,
		ResalePrice:   &resale,
		Fees:          &fees,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ActualProfit == nil {
		t.Fatal("ActualProfit not computed")
	}
	if *updated.ActualProfit != 114 {
		t.Errorf("ActualProfit = %v, want 114", *updated.ActualProfit)
	}
}

func TestUpdateProfitWithoutFees(t *testing.T) {
	svc, _, listings := newOpportunityFixture()
	listing := listings.add(scoredListing(85))

	opportunity, err := svc.CreateFromListing(context.Background(), listing.ID, "op-1", "")
	if err != nil {
		t.Fatalf("CreateFromListing: %v", err)
	}

	purchase, resale := 100.0, 250.0
	updated, err := svc.Update(context.Background(), opportunity.ID, UpdateOpportunityInput{
		PurchasePrice: &purchase,
		ResalePrice:   &resale,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ActualProfit == nil || *updated.ActualProfit != 150 {
		t.Errorf("ActualProfit = %v, want 150", updated.ActualProfit)
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	svc, _, listings := newOpportunityFixture()
	listing := listings.add(scoredListing(85))

	opportunity, err := svc.CreateFromListing(context.Background(), listing.ID, "op-1", "")
	if err != nil {
		t.Fatalf("CreateFromListing: %v", err)
	}

	_, err = svc.Update(context.Background(), opportunity.ID, UpdateOpportunityInput{
		Status: types.OpportunityStatus("mythical"),
	})
	if got := errCategory(t, err); got != errors.CategoryValidation {
		t.Errorf("category = %q, want validation", got)
	}
}

func TestDeleteResetsListingByScore(t *testing.T) {
	cases := []struct {
		name  string
		score int
		want  types.ListingStatus
	}{
		{"high score returns to opportunity", 85, types.ListingStatusOpportunity},
		{"low score returns to new", 40, types.ListingStatusNew},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, listings := newOpportunityFixture()
			listing := listings.add(scoredListing(tc.score))

			opportunity, err := svc.CreateFromListing(context.Background(), listing.ID, "op-1", "")
			if err != nil {
				t.Fatalf("CreateFromListing: %v", err)
			}
			if err := svc.Delete(context.Background(), opportunity.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}

			stored, err := listings.GetByID(context.Background(), listing.ID)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if stored.Status != tc.want {
				t.Errorf("Status = %q, want %q", stored.Status, tc.want)
			}
		})
	}
}
