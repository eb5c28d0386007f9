package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
)

// QueueRepository interface for posting-queue data operations
type QueueRepository interface {
	Enqueue(ctx context.Context, item *models.QueueItem) error
	GetByID(ctx context.Context, id string) (*models.QueueItem, error)
	ClaimPending(ctx context.Context, limit int) ([]*models.QueueItem, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
	TryRetry(ctx context.Context, id string) (bool, error)
	ListByStatus(ctx context.Context, status types.QueueStatus, limit int) ([]*models.QueueItem, error)
	ListRetryable(ctx context.Context, olderThan time.Duration, limit int) ([]*models.QueueItem, error)
}

// QueueService manages the posting queue's lifecycle and retry rules
type QueueService struct {
	repo              QueueRepository
	defaultMaxRetries int
	logger            *logging.Logger
}

// NewQueueService creates a new queue service
func NewQueueService(repo QueueRepository, defaultMaxRetries int, logger *logging.Logger) *QueueService {
	if defaultMaxRetries <= 0 {
		defaultMaxRetries = 3
	}
	return &QueueService{
		repo:              repo,
		defaultMaxRetries: defaultMaxRetries,
		logger:            logger.WithField("component", "queue_service"),
	}
}

// EnqueueInput describes one outbound action
type EnqueueInput struct {
	Action         types.QueueAction `json:"action"`
	ListingID      *string           `json:"listingId,omitempty"`
	MessageID      *string           `json:"messageId,omitempty"`
	TargetPlatform types.Platform    `json:"targetPlatform"`
	Payload        string            `json:"payload,omitempty"`
	MaxRetries     int               `json:"maxRetries,omitempty"`
}

// Enqueue validates and inserts a pending queue item
func (s *QueueService) Enqueue(ctx context.Context, input EnqueueInput) (*models.QueueItem, error) {
	switch input.Action {
	case types.ActionSendMessage, types.ActionCrossPost:
	default:
		return nil, errors.NewValidationError("action", "unknown queue action")
	}
	if input.TargetPlatform == "" {
		return nil, errors.NewValidationError("targetPlatform", "must not be empty")
	}

	maxRetries := input.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.defaultMaxRetries
	}

	item := &models.QueueItem{
		ID:             uuid.New().String(),
		Action:         input.Action,
		ListingID:      input.ListingID,
		MessageID:      input.MessageID,
		TargetPlatform: input.TargetPlatform,
		Payload:        input.Payload,
		Status:         types.QueueStatusPending,
		MaxRetries:     maxRetries,
	}

	if err := s.repo.Enqueue(ctx, item); err != nil {
		return nil, errors.NewDatabaseError("enqueue item", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"itemId": item.ID,
		"action": string(item.Action),
	}).Info("Queue item enqueued")

	return item, nil
}

// Get retrieves a queue item by ID
func (s *QueueService) Get(ctx context.Context, id string) (*models.QueueItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("queue item", id, err)
	}
	return item, nil
}

// List retrieves queue items in a given status
func (s *QueueService) List(ctx context.Context, status types.QueueStatus, limit int) ([]*models.QueueItem, error) {
	items, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list queue items", err)
	}
	return items, nil
}

// Retry transitions a failed item back to pending. The transition is legal
// only while the item is failed with retries remaining; the repository
// performs it as one conditional update, so a concurrent retry of the same
// item succeeds exactly once.
func (s *QueueService) Retry(ctx context.Context, id string) (*models.QueueItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("queue item", id, err)
	}

	if item.Status != types.QueueStatusFailed {
		return nil, errors.NewInvalidStateError("queue item", id, string(item.Status), string(types.QueueStatusFailed))
	}
	if item.RetryCount >= item.MaxRetries {
		return nil, errors.NewRetriesExhaustedError(id, item.RetryCount, item.MaxRetries)
	}

	transitioned, err := s.repo.TryRetry(ctx, id)
	if err != nil {
		return nil, errors.NewDatabaseError("retry queue item", err)
	}
	if !transitioned {
		// Lost the race: the item moved between our read and the update
		return nil, errors.NewConflictError("queue item changed state, retry not applied")
	}

	s.logger.WithField("itemId", id).Info("Queue item requeued for retry")
	return s.Get(ctx, id)
}

// RequeueStale retries failed items whose retries remain and whose last
// attempt is older than the backoff delay. Called periodically by the
// executor; operator-driven retries go through Retry.
func (s *QueueService) RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	items, err := s.repo.ListRetryable(ctx, olderThan, limit)
	if err != nil {
		return 0, errors.NewDatabaseError("list retryable queue items", err)
	}

	requeued := 0
	for _, item := range items {
		transitioned, err := s.repo.TryRetry(ctx, item.ID)
		if err != nil {
			s.logger.WithError(err).WithField("itemId", item.ID).Warn("Auto-requeue failed")
			continue
		}
		if transitioned {
			requeued++
		}
	}

	return requeued, nil
}
