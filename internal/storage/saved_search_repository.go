package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/flipscan/internal/models"
	"github.com/jackc/pgx/v5"
)

// SavedSearchRepository handles saved-search persistence
type SavedSearchRepository struct {
	db *PostgresDB
}

// NewSavedSearchRepository creates a new saved-search repository
func NewSavedSearchRepository(db *PostgresDB) *SavedSearchRepository {
	return &SavedSearchRepository{db: db}
}

const savedSearchColumns = `
	id, owner_id, platform, location, category, keywords, min_price, max_price,
	enabled, last_run_at, created_at`

// Create inserts a saved search
func (r *SavedSearchRepository) Create(ctx context.Context, search *models.SavedSearch) error {
	query := `
		INSERT INTO saved_searches (
			id, owner_id, platform, location, category, keywords, min_price, max_price,
			enabled, last_run_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`

	_, err := r.db.Pool().Exec(ctx, query,
		search.ID,
		search.OwnerID,
		search.Platform,
		search.Location,
		search.Category,
		search.Keywords,
		search.MinPrice,
		search.MaxPrice,
		search.Enabled,
		search.LastRunAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create saved search: %w", err)
	}

	return nil
}

// GetByID retrieves a saved search by ID
func (r *SavedSearchRepository) GetByID(ctx context.Context, id string) (*models.SavedSearch, error) {
	query := `SELECT ` + savedSearchColumns + ` FROM saved_searches WHERE id = $1`

	search, err := scanSavedSearch(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("saved search %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get saved search: %w", err)
	}

	return search, nil
}

// ListEnabled retrieves all enabled saved searches
func (r *SavedSearchRepository) ListEnabled(ctx context.Context) ([]*models.SavedSearch, error) {
	query := `SELECT ` + savedSearchColumns + ` FROM saved_searches WHERE enabled ORDER BY created_at ASC`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved searches: %w", err)
	}
	defer rows.Close()

	var searches []*models.SavedSearch
	for rows.Next() {
		search, err := scanSavedSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved search: %w", err)
		}
		searches = append(searches, search)
	}

	return searches, rows.Err()
}

// SetEnabled toggles a saved search
func (r *SavedSearchRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE saved_searches SET enabled = $2 WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to toggle saved search: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("saved search %s: %w", id, ErrNotFound)
	}

	return nil
}

// TouchLastRun records that the scheduler just ran a saved search
func (r *SavedSearchRepository) TouchLastRun(ctx context.Context, id string) error {
	query := `UPDATE saved_searches SET last_run_at = NOW() WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to touch saved search: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("saved search %s: %w", id, ErrNotFound)
	}

	return nil
}

// Delete removes a saved search
func (r *SavedSearchRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM saved_searches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved search: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("saved search %s: %w", id, ErrNotFound)
	}

	return nil
}

func scanSavedSearch(row pgx.Row) (*models.SavedSearch, error) {
	var search models.SavedSearch

	err := row.Scan(
		&search.ID,
		&search.OwnerID,
		&search.Platform,
		&search.Location,
		&search.Category,
		&search.Keywords,
		&search.MinPrice,
		&search.MaxPrice,
		&search.Enabled,
		&search.LastRunAt,
		&search.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &search, nil
}
