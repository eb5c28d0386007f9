package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
	"github.com/jackc/pgx/v5"
)

// QueueRepository handles posting-queue persistence
type QueueRepository struct {
	db *PostgresDB
}

// NewQueueRepository creates a new posting-queue repository
func NewQueueRepository(db *PostgresDB) *QueueRepository {
	return &QueueRepository{db: db}
}

const queueColumns = `
	id, action, listing_id, message_id, target_platform, payload, status,
	retry_count, max_retries, error_message, created_at, updated_at,
	started_at, completed_at`

// Enqueue inserts a new pending queue item
func (r *QueueRepository) Enqueue(ctx context.Context, item *models.QueueItem) error {
	query := `
		INSERT INTO queue_items (
			id, action, listing_id, message_id, target_platform, payload, status,
			retry_count, max_retries, error_message, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`

	_, err := r.db.Pool().Exec(ctx, query,
		item.ID,
		item.Action,
		item.ListingID,
		item.MessageID,
		item.TargetPlatform,
		item.Payload,
		item.Status,
		item.RetryCount,
		item.MaxRetries,
		item.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue item: %w", err)
	}

	return nil
}

// GetByID retrieves a queue item by ID
func (r *QueueRepository) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_items WHERE id = $1`

	item, err := scanQueueItem(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("queue item %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}

	return item, nil
}

// ClaimPending atomically claims up to limit pending items for an executor,
// transitioning them to running. FOR UPDATE SKIP LOCKED keeps concurrent
// executors from claiming the same rows.
func (r *QueueRepository) ClaimPending(ctx context.Context, limit int) ([]*models.QueueItem, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		UPDATE queue_items
		SET status = $1, started_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM queue_items
			WHERE status = $2
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + queueColumns

	rows, err := r.db.Pool().Query(ctx, query, types.QueueStatusRunning, types.QueueStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue items: %w", err)
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// MarkDone transitions a running item to done
func (r *QueueRepository) MarkDone(ctx context.Context, id string) error {
	query := `
		UPDATE queue_items
		SET status = $2, error_message = NULL, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, id, types.QueueStatusDone, types.QueueStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark queue item done: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("queue item %s is not running", id)
	}
	return nil
}

// MarkFailed transitions a running item to failed, recording the error.
// retry_count stays put: it counts consumed retries, not failures, and is
// incremented by TryRetry.
func (r *QueueRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	query := `
		UPDATE queue_items
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	result, err := r.db.Pool().Exec(ctx, query, id, types.QueueStatusFailed, errorMessage, types.QueueStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark queue item failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("queue item %s is not running", id)
	}
	return nil
}

// ExhaustRetries burns the remaining retry budget of an item whose failure
// is permanent, so neither the automatic requeue nor TryRetry picks it up.
func (r *QueueRepository) ExhaustRetries(ctx context.Context, id string) error {
	query := `
		UPDATE queue_items
		SET retry_count = max_retries, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Pool().Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to exhaust queue item retries: %w", err)
	}
	return nil
}

// TryRetry performs the failed -> pending transition as a single conditional
// update: it succeeds only while the item is failed with retries remaining.
// Returns true when the transition happened.
func (r *QueueRepository) TryRetry(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE queue_items
		SET status = $2, retry_count = retry_count + 1, error_message = NULL,
			started_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND retry_count < max_retries
	`

	result, err := r.db.Pool().Exec(ctx, query, id, types.QueueStatusPending, types.QueueStatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to retry queue item: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListByStatus retrieves queue items in a given status, oldest first
func (r *QueueRepository) ListByStatus(ctx context.Context, status types.QueueStatus, limit int) ([]*models.QueueItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + queueColumns + ` FROM queue_items WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.db.Pool().Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ListRetryable retrieves failed items with retries remaining whose last
// attempt is old enough. The required age doubles with each prior retry, so
// repeatedly failing items back off exponentially from baseDelay.
func (r *QueueRepository) ListRetryable(ctx context.Context, baseDelay time.Duration, limit int) ([]*models.QueueItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT ` + queueColumns + `
		FROM queue_items
		WHERE status = $1 AND retry_count < max_retries
			AND updated_at < NOW() - ($2::interval * POWER(2, retry_count))
		ORDER BY updated_at ASC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, types.QueueStatusFailed, baseDelay.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable queue items: %w", err)
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func scanQueueItem(row pgx.Row) (*models.QueueItem, error) {
	var item models.QueueItem

	err := row.Scan(
		&item.ID,
		&item.Action,
		&item.ListingID,
		&item.MessageID,
		&item.TargetPlatform,
		&item.Payload,
		&item.Status,
		&item.RetryCount,
		&item.MaxRetries,
		&item.ErrorMessage,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.StartedAt,
		&item.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &item, nil
}
