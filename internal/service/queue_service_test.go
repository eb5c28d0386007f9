package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
)

func failedItem(id string, retryCount, maxRetries int) *models.QueueItem {
	return &models.QueueItem{
		ID:             id,
		Action:         types.ActionSendMessage,
		TargetPlatform: types.PlatformCraigslist,
		Status:         types.QueueStatusFailed,
		RetryCount:     retryCount,
		MaxRetries:     maxRetries,
	}
}

func errCategory(t *testing.T, err error) errors.ErrorCategory {
	t.Helper()
	var categorized *errors.CategorizedError
	if !stderrors.As(err, &categorized) {
		t.Fatalf("expected a categorized error, got %v", err)
	}
	return categorized.Category
}

func TestEnqueueDefaultsMaxRetries(t *testing.T) {
	repo := newFakeQueueRepo()
	svc := NewQueueService(repo, 3, testLogger())

	item, err := svc.Enqueue(context.Background(), EnqueueInput{
		Action:         types.ActionSendMessage,
		TargetPlatform: types.PlatformCraigslist,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if item.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", item.MaxRetries)
	}
	if item.Status != types.QueueStatusPending {
		t.Errorf("Status = %q, want pending", item.Status)
	}
}

func TestEnqueueRejectsUnknownAction(t *testing.T) {
	svc := NewQueueService(newFakeQueueRepo(), 3, testLogger())

	_, err := svc.Enqueue(context.Background(), EnqueueInput{
		Action:         types.QueueAction("teleport"),
		TargetPlatform: types.PlatformCraigslist,
	})
	if got := errCategory(t, err); got != errors.CategoryValidation {
		t.Errorf("category = %q, want validation", got)
	}
}

func TestRetryNotFound(t *testing.T) {
	svc := NewQueueService(newFakeQueueRepo(), 3, testLogger())

	_, err := svc.Retry(context.Background(), "missing")
	if got := errCategory(t, err); got != errors.CategoryNotFound {
		t.Errorf("category = %q, want not_found", got)
	}
}

func TestRetryRequiresFailedState(t *testing.T) {
	repo := newFakeQueueRepo()
	item := failedItem("item-1", 0, 3)
	item.Status = types.QueueStatusDone
	repo.add(item)
	svc := NewQueueService(repo, 3, testLogger())

	_, err := svc.Retry(context.Background(), "item-1")
	if got := errCategory(t, err); got != errors.CategoryInvalidState {
		t.Errorf("category = %q, want invalid_state", got)
	}
}

func TestRetryExhausted(t *testing.T) {
	repo := newFakeQueueRepo()
	repo.add(failedItem("item-1", 3, 3))
	svc := NewQueueService(repo, 3, testLogger())

	_, err := svc.Retry(context.Background(), "item-1")
	if got := errCategory(t, err); got != errors.CategoryRetriesExhausted {
		t.Errorf("category = %q, want retries_exhausted", got)
	}
}

func TestRetryTransitionsToPending(t *testing.T) {
	repo := newFakeQueueRepo()
	msg := "adapter timeout"
	item := failedItem("item-1", 1, 3)
	item.ErrorMessage = &msg
	repo.add(item)
	svc := NewQueueService(repo, 3, testLogger())

	updated, err := svc.Retry(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if updated.Status != types.QueueStatusPending {
		t.Errorf("Status = %q, want pending", updated.Status)
	}
	if updated.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", updated.RetryCount)
	}
	if updated.ErrorMessage != nil {
		t.Errorf("ErrorMessage = %q, want cleared", *updated.ErrorMessage)
	}
}

// lostRaceRepo reports a retryable item on read but refuses the transition,
// simulating a concurrent retry winning the conditional update.
type lostRaceRepo struct {
	*fakeQueueRepo
}

func (r *lostRaceRepo) TryRetry(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func TestRetryLosingRaceIsConflict(t *testing.T) {
	repo := newFakeQueueRepo()
	repo.add(failedItem("item-1", 0, 3))
	svc := NewQueueService(&lostRaceRepo{repo}, 3, testLogger())

	_, err := svc.Retry(context.Background(), "item-1")
	if got := errCategory(t, err); got != errors.CategoryConflict {
		t.Errorf("category = %q, want conflict", got)
	}
}

func TestRequeueStale(t *testing.T) {
	repo := newFakeQueueRepo()
	repo.add(failedItem("eligible-1", 0, 3))
	repo.add(failedItem("eligible-2", 2, 3))
	repo.add(failedItem("exhausted", 3, 3))
	svc := NewQueueService(repo, 3, testLogger())

	requeued, err := svc.RequeueStale(context.Background(), time.Minute, 10)
	if err != nil {
		t.Fatalf("RequeueStale: %v", err)
	}
	if requeued != 2 {
		t.Errorf("requeued = %d, want 2", requeued)
	}

	pending, _ := repo.ListByStatus(context.Background(), types.QueueStatusPending, 10)
	if len(pending) != 2 {
		t.Errorf("pending items = %d, want 2", len(pending))
	}
}
