package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
	"github.com/jackc/pgx/v5"
)

// ListingRepository handles listing persistence
type ListingRepository struct {
	db *PostgresDB
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *PostgresDB) *ListingRepository {
	return &ListingRepository{db: db}
}

const listingColumns = `
	id, platform, external_id, owner_id, title, description, asking_price,
	condition, location, category, brand, url, image_refs, posted_at, scraped_at,
	estimated_value, estimated_low, estimated_high,
	profit_potential, profit_low, profit_high, discount_percent, value_score,
	resale_difficulty, negotiable, shippable, tags, reasoning,
	comparable_refs, comp_confidence, comp_sample_size,
	status, notes, created_at, updated_at`

// Upsert inserts a listing or refreshes an existing one keyed by
// (platform, external_id, owner_id). Re-scrapes refresh raw and valuation
// fields only: status and notes are operator-owned and preserved. Returns
// the stored listing and whether a new row was created.
func (r *ListingRepository) Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, bool, error) {
	query := `
		INSERT INTO listings (
			id, platform, external_id, owner_id, title, description, asking_price,
			condition, location, category, brand, url, image_refs, posted_at, scraped_at,
			estimated_value, estimated_low, estimated_high,
			profit_potential, profit_low, profit_high, discount_percent, value_score,
			resale_difficulty, negotiable, shippable, tags, reasoning,
			comparable_refs, comp_confidence, comp_sample_size,
			status, notes, created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33, NOW(), NOW()
		)
		ON CONFLICT (platform, external_id, owner_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			asking_price = EXCLUDED.asking_price,
			condition = EXCLUDED.condition,
			location = EXCLUDED.location,
			category = EXCLUDED.category,
			brand = EXCLUDED.brand,
			url = EXCLUDED.url,
			image_refs = EXCLUDED.image_refs,
			posted_at = EXCLUDED.posted_at,
			scraped_at = EXCLUDED.scraped_at,
			estimated_value = EXCLUDED.estimated_value,
			estimated_low = EXCLUDED.estimated_low,
			estimated_high = EXCLUDED.estimated_high,
			profit_potential = EXCLUDED.profit_potential,
			profit_low = EXCLUDED.profit_low,
			profit_high = EXCLUDED.profit_high,
			discount_percent = EXCLUDED.discount_percent,
			value_score = EXCLUDED.value_score,
			resale_difficulty = EXCLUDED.resale_difficulty,
			negotiable = EXCLUDED.negotiable,
			shippable = EXCLUDED.shippable,
			tags = EXCLUDED.tags,
			reasoning = EXCLUDED.reasoning,
			comparable_refs = EXCLUDED.comparable_refs,
			comp_confidence = EXCLUDED.comp_confidence,
			comp_sample_size = EXCLUDED.comp_sample_size,
			updated_at = NOW()
		RETURNING ` + listingColumns + `, (xmax = 0) AS inserted`

	row := r.db.Pool().QueryRow(ctx, query,
		listing.ID,
		listing.Platform,
		listing.ExternalID,
		listing.OwnerID,
		listing.Title,
		listing.Description,
		listing.AskingPrice,
		listing.Condition,
		listing.Location,
		listing.Category,
		listing.Brand,
		listing.URL,
		listing.ImageRefs,
		listing.PostedAt,
		listing.ScrapedAt,
		listing.EstimatedValue,
		listing.EstimatedLow,
		listing.EstimatedHigh,
		listing.ProfitPotential,
		listing.ProfitLow,
		listing.ProfitHigh,
		listing.DiscountPercent,
		listing.ValueScore,
		listing.ResaleDifficulty,
		listing.Negotiable,
		listing.Shippable,
		listing.Tags,
		listing.Reasoning,
		listing.ComparableRefs,
		listing.CompConfidence,
		listing.CompSampleSize,
		listing.Status,
		listing.Notes,
	)

	var stored models.Listing
	var inserted bool
	if err := scanListing(row, &stored, &inserted); err != nil {
		return nil, false, fmt.Errorf("failed to upsert listing: %w", err)
	}

	return &stored, inserted, nil
}

// GetByID retrieves a listing by ID
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	var listing models.Listing
	if err := scanListing(r.db.Pool().QueryRow(ctx, query, id), &listing, nil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return &listing, nil
}

// ListingFilter narrows List results
type ListingFilter struct {
	Platform  types.Platform
	Status    types.ListingStatus
	Category  string
	OwnerID   *string // nil means any owner
	MinScore  int
	Limit     int
	Offset    int
	SortBy    string // value_score | asking_price | scraped_at
	Ascending bool
}

// List retrieves listings matching the filter, newest first by default
func (r *ListingRepository) List(ctx context.Context, filter ListingFilter) ([]*models.Listing, error) {
	var conditions []string
	var args []interface{}

	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Platform != "" {
		conditions = append(conditions, "platform = "+arg(filter.Platform))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = "+arg(filter.Category))
	}
	if filter.OwnerID != nil {
		conditions = append(conditions, "owner_id = "+arg(*filter.OwnerID))
	}
	if filter.MinScore > 0 {
		conditions = append(conditions, "value_score >= "+arg(filter.MinScore))
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY " + sortColumn(filter.SortBy)
	if filter.Ascending {
		query += " ASC"
	} else {
		query += " DESC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT " + arg(limit) + " OFFSET " + arg(filter.Offset)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		var listing models.Listing
		if err := scanListing(rows, &listing, nil); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, &listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return listings, nil
}

// sortColumn whitelists sortable columns; anything else sorts by scrape time
func sortColumn(sortBy string) string {
	switch sortBy {
	case "value_score", "asking_price", "profit_potential":
		return sortBy
	default:
		return "scraped_at"
	}
}

// UpdateStatus sets the operator-owned status field
func (r *ListingRepository) UpdateStatus(ctx context.Context, id string, status types.ListingStatus) error {
	query := `UPDATE listings SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update listing status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("listing not found: %s", id)
	}
	return nil
}

// UpdateNotes sets the operator-owned notes field
func (r *ListingRepository) UpdateNotes(ctx context.Context, id string, notes string) error {
	query := `UPDATE listings SET notes = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, id, notes)
	if err != nil {
		return fmt.Errorf("failed to update listing notes: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("listing not found: %s", id)
	}
	return nil
}

// CountByStatus returns listing counts grouped by status
func (r *ListingRepository) CountByStatus(ctx context.Context) (map[types.ListingStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM listings GROUP BY status`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.ListingStatus]int)
	for rows.Next() {
		var status types.ListingStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan listing count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// scanListing scans one listing row; inserted may be nil when the query does
// not return the (xmax = 0) column.
func scanListing(row pgx.Row, listing *models.Listing, inserted *bool) error {
	var postedAt *time.Time

	dest := []interface{}{
		&listing.ID,
		&listing.Platform,
		&listing.ExternalID,
		&listing.OwnerID,
		&listing.Title,
		&listing.Description,
		&listing.AskingPrice,
		&listing.Condition,
		&listing.Location,
		&listing.Category,
		&listing.Brand,
		&listing.URL,
		&listing.ImageRefs,
		&postedAt,
		&listing.ScrapedAt,
		&listing.EstimatedValue,
		&listing.EstimatedLow,
		&listing.EstimatedHigh,
		&listing.ProfitPotential,
		&listing.ProfitLow,
		&listing.ProfitHigh,
		&listing.DiscountPercent,
		&listing.ValueScore,
		&listing.ResaleDifficulty,
		&listing.Negotiable,
		&listing.Shippable,
		&listing.Tags,
		&listing.Reasoning,
		&listing.ComparableRefs,
		&listing.CompConfidence,
		&listing.CompSampleSize,
		&listing.Status,
		&listing.Notes,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	}
	if inserted != nil {
		dest = append(dest, inserted)
	}

	if err := row.Scan(dest...); err != nil {
		return err
	}

	listing.PostedAt = postedAt
	return nil
}
