package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
	"github.com/jackc/pgx/v5"
)

// MessageRepository handles message persistence
type MessageRepository struct {
	db *PostgresDB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *PostgresDB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, listing_id, owner_id, direction, body, status, created_at, updated_at`

// Create inserts a new message
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (id, listing_id, owner_id, direction, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`

	_, err := r.db.Pool().Exec(ctx, query,
		message.ID,
		message.ListingID,
		message.OwnerID,
		message.Direction,
		message.Body,
		message.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by ID
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	message, err := scanMessage(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return message, nil
}

// Update updates a message's body and status
func (r *MessageRepository) Update(ctx context.Context, message *models.Message) error {
	query := `UPDATE messages SET body = $2, status = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, message.ID, message.Body, message.Status)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", message.ID, ErrNotFound)
	}

	return nil
}

// UpdateStatus transitions a message's status with a compare-and-set on the
// current status so concurrent workflow updates cannot race.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, from, to types.MessageStatus) (bool, error) {
	query := `UPDATE messages SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	result, err := r.db.Pool().Exec(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update message status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListByListing retrieves messages for a listing, oldest first
func (r *MessageRepository) ListByListing(ctx context.Context, listingID string) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE listing_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.Pool().Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

// ListByStatus retrieves messages in a given status, oldest first
func (r *MessageRepository) ListByStatus(ctx context.Context, status types.MessageStatus, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.db.Pool().Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages by status: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var message models.Message

	err := row.Scan(
		&message.ID,
		&message.ListingID,
		&message.OwnerID,
		&message.Direction,
		&message.Body,
		&message.Status,
		&message.CreatedAt,
		&message.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}
