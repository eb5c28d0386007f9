package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/storage"
	"github.com/flipscan/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

// fakeListingRepo is an in-memory ListingRepository
type fakeListingRepo struct {
	mu       sync.Mutex
	byID     map[string]*models.Listing
	upserts  int
	upsertFn func(listing *models.Listing) error // optional per-call failure hook
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{byID: map[string]*models.Listing{}}
}

func (f *fakeListingRepo) Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertFn != nil {
		if err := f.upsertFn(listing); err != nil {
			return nil, false, err
		}
	}
	key := string(listing.Platform) + "|" + listing.ExternalID + "|" + listing.OwnerID
	for _, existing := range f.byID {
		if string(existing.Platform)+"|"+existing.ExternalID+"|"+existing.OwnerID == key {
			listing.ID = existing.ID
			listing.Status = existing.Status // operator-owned
			listing.Notes = existing.Notes
			f.byID[existing.ID] = listing
			return listing, false, nil
		}
	}
	f.byID[listing.ID] = listing
	return listing, true, nil
}

func (f *fakeListingRepo) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	return listing, nil
}

func (f *fakeListingRepo) List(ctx context.Context, filter storage.ListingFilter) ([]*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Listing, 0, len(f.byID))
	for _, listing := range f.byID {
		out = append(out, listing)
	}
	return out, nil
}

func (f *fakeListingRepo) UpdateStatus(ctx context.Context, id string, status types.ListingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	listing.Status = status
	return nil
}

func (f *fakeListingRepo) UpdateNotes(ctx context.Context, id string, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	listing.Notes = notes
	return nil
}

func (f *fakeListingRepo) CountByStatus(ctx context.Context) (map[types.ListingStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[types.ListingStatus]int{}
	for _, listing := range f.byID {
		counts[listing.Status]++
	}
	return counts, nil
}

func (f *fakeListingRepo) add(listing *models.Listing) *models.Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[listing.ID] = listing
	return listing
}

// fakeJobRepo is an in-memory JobRepository
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.ScrapeJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*models.ScrapeJob{}}
}

func (f *fakeJobRepo) Create(ctx context.Context, job *models.ScrapeJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id string) (*models.ScrapeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("scrape job %s: %w", id, storage.ErrNotFound)
	}
	return job, nil
}

func (f *fakeJobRepo) Update(ctx context.Context, job *models.ScrapeJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) MarkRunning(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return fmt.Errorf("scrape job %s: %w", id, storage.ErrNotFound)
	}
	job.Status = types.JobStatusRunning
	return nil
}

func (f *fakeJobRepo) ListRecent(ctx context.Context, limit int) ([]*models.ScrapeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ScrapeJob, 0, len(f.jobs))
	for _, job := range f.jobs {
		out = append(out, job)
	}
	return out, nil
}

// fakeQueueRepo is an in-memory QueueRepository
type fakeQueueRepo struct {
	mu    sync.Mutex
	items map[string]*models.QueueItem
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{items: map[string]*models.QueueItem{}}
}

func (f *fakeQueueRepo) Enqueue(ctx context.Context, item *models.QueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	copied := *item
	f.items[item.ID] = &copied
	return nil
}

func (f *fakeQueueRepo) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("queue item %s: %w", id, storage.ErrNotFound)
	}
	copied := *item
	return &copied, nil
}

func (f *fakeQueueRepo) ClaimPending(ctx context.Context, limit int) ([]*models.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var claimed []*models.QueueItem
	for _, item := range f.items {
		if len(claimed) >= limit {
			break
		}
		if item.Status == types.QueueStatusPending {
			item.Status = types.QueueStatusRunning
			now := time.Now().UTC()
			item.StartedAt = &now
			copied := *item
			claimed = append(claimed, &copied)
		}
	}
	return claimed, nil
}

func (f *fakeQueueRepo) MarkDone(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.Status != types.QueueStatusRunning {
		return fmt.Errorf("queue item %s: %w", id, storage.ErrNotFound)
	}
	item.Status = types.QueueStatusDone
	item.ErrorMessage = nil
	return nil
}

func (f *fakeQueueRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.Status != types.QueueStatusRunning {
		return fmt.Errorf("queue item %s: %w", id, storage.ErrNotFound)
	}
	item.Status = types.QueueStatusFailed
	item.ErrorMessage = &errorMessage
	return nil
}

func (f *fakeQueueRepo) TryRetry(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return false, nil
	}
	if item.Status != types.QueueStatusFailed || item.RetryCount >= item.MaxRetries {
		return false, nil
	}
	item.Status = types.QueueStatusPending
	item.RetryCount++
	item.ErrorMessage = nil
	return true, nil
}

func (f *fakeQueueRepo) ListByStatus(ctx context.Context, status types.QueueStatus, limit int) ([]*models.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.QueueItem
	for _, item := range f.items {
		if item.Status == status {
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeQueueRepo) ListRetryable(ctx context.Context, olderThan time.Duration, limit int) ([]*models.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.QueueItem
	for _, item := range f.items {
		if item.RetryEligible() {
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeQueueRepo) add(item *models.QueueItem) *models.QueueItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
	return item
}
