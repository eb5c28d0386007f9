package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateOpportunity signals that the listing already has an opportunity
var ErrDuplicateOpportunity = errors.New("opportunity already exists for listing")

// OpportunityRepository handles opportunity persistence
type OpportunityRepository struct {
	db *PostgresDB
}

// NewOpportunityRepository creates a new opportunity repository
func NewOpportunityRepository(db *PostgresDB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

const opportunityColumns = `
	id, listing_id, owner_id, status, purchase_price, resale_price, fees,
	actual_profit, notes, created_at, updated_at`

// Create inserts an opportunity and flips its listing to the opportunity
// status in the same transaction, so the two never diverge.
func (r *OpportunityRepository) Create(ctx context.Context, opportunity *models.Opportunity) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	insert := `
		INSERT INTO opportunities (
			id, listing_id, owner_id, status, purchase_price, resale_price, fees,
			actual_profit, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err = tx.Exec(ctx, insert,
		opportunity.ID,
		opportunity.ListingID,
		opportunity.OwnerID,
		opportunity.Status,
		opportunity.PurchasePrice,
		opportunity.ResalePrice,
		opportunity.Fees,
		opportunity.ActualProfit,
		opportunity.Notes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation on listing_id
			return ErrDuplicateOpportunity
		}
		return fmt.Errorf("failed to create opportunity: %w", err)
	}

	update := `UPDATE listings SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.Exec(ctx, update, opportunity.ListingID, types.ListingStatusOpportunity)
	if err != nil {
		return fmt.Errorf("failed to update listing status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("listing %s: %w", opportunity.ListingID, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit opportunity: %w", err)
	}
	return nil
}

// GetByID retrieves an opportunity by ID
func (r *OpportunityRepository) GetByID(ctx context.Context, id string) (*models.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1`

	opportunity, err := scanOpportunity(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}

	return opportunity, nil
}

// GetByListingID retrieves the opportunity attached to a listing
func (r *OpportunityRepository) GetByListingID(ctx context.Context, listingID string) (*models.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE listing_id = $1`

	opportunity, err := scanOpportunity(r.db.Pool().QueryRow(ctx, query, listingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("opportunity for listing %s: %w", listingID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get opportunity by listing: %w", err)
	}

	return opportunity, nil
}

// Update updates an opportunity's mutable fields
func (r *OpportunityRepository) Update(ctx context.Context, opportunity *models.Opportunity) error {
	query := `
		UPDATE opportunities
		SET status = $2, purchase_price = $3, resale_price = $4, fees = $5,
			actual_profit = $6, notes = $7, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		opportunity.ID,
		opportunity.Status,
		opportunity.PurchasePrice,
		opportunity.ResalePrice,
		opportunity.Fees,
		opportunity.ActualProfit,
		opportunity.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update opportunity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("opportunity %s: %w", opportunity.ID, ErrNotFound)
	}

	return nil
}

// Delete removes an opportunity and resets its listing, transactionally, so
// a dismissed opportunity can be re-identified later. Listings still scoring
// at or above scoreThreshold go back to opportunity status, the rest to new.
func (r *OpportunityRepository) Delete(ctx context.Context, id string, scoreThreshold int) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var listingID string
	err = tx.QueryRow(ctx, `DELETE FROM opportunities WHERE id = $1 RETURNING listing_id`, id).Scan(&listingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to delete opportunity: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE listings
		SET status = CASE WHEN value_score >= $2 THEN $3::text ELSE $4::text END, updated_at = NOW()
		WHERE id = $1`,
		listingID, scoreThreshold, string(types.ListingStatusOpportunity), string(types.ListingStatusNew))
	if err != nil {
		return fmt.Errorf("failed to reset listing status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit opportunity delete: %w", err)
	}
	return nil
}

// List retrieves opportunities, optionally filtered by status, newest first
func (r *OpportunityRepository) List(ctx context.Context, status types.OpportunityStatus, limit int) ([]*models.Opportunity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + opportunityColumns + ` FROM opportunities`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	defer rows.Close()

	var opportunities []*models.Opportunity
	for rows.Next() {
		opportunity, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		opportunities = append(opportunities, opportunity)
	}

	return opportunities, rows.Err()
}

// ProfitSummary aggregates realized economics across all opportunities
func (r *OpportunityRepository) ProfitSummary(ctx context.Context) (*models.ProfitSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE purchase_price IS NOT NULL),
			COUNT(*) FILTER (WHERE status = $1),
			COALESCE(SUM(purchase_price), 0),
			COALESCE(SUM(resale_price), 0),
			COALESCE(SUM(fees), 0),
			COALESCE(SUM(actual_profit), 0)
		FROM opportunities
	`

	var summary models.ProfitSummary
	err := r.db.Pool().QueryRow(ctx, query, types.OpportunityStatusSold).Scan(
		&summary.TotalOpportunities,
		&summary.Purchased,
		&summary.Sold,
		&summary.TotalInvested,
		&summary.TotalRevenue,
		&summary.TotalFees,
		&summary.TotalProfit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute profit summary: %w", err)
	}

	return &summary, nil
}

func scanOpportunity(row pgx.Row) (*models.Opportunity, error) {
	var opportunity models.Opportunity

	err := row.Scan(
		&opportunity.ID,
		&opportunity.ListingID,
		&opportunity.OwnerID,
		&opportunity.Status,
		&opportunity.PurchasePrice,
		&opportunity.ResalePrice,
		&opportunity.Fees,
		&opportunity.ActualProfit,
		&opportunity.Notes,
		&opportunity.CreatedAt,
		&opportunity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &opportunity, nil
}
