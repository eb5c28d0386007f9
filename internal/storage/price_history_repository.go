package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/flipscan/internal/comps"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
)

// PriceHistoryRepository stores comparable sold-item records in ClickHouse.
// The table is append-only: rows are inserted once and never updated, which
// fits ClickHouse's MergeTree engine.
type PriceHistoryRepository struct {
	db *ClickHouseDB
}

// NewPriceHistoryRepository creates a new price-history repository
func NewPriceHistoryRepository(db *ClickHouseDB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

var _ comps.HistoryStore = (*PriceHistoryRepository)(nil)

// Insert appends comparable records in a batch
func (r *PriceHistoryRepository) Insert(ctx context.Context, comparables []models.Comparable) error {
	if len(comparables) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO price_history (
			id, product_name, category, platform, sold_price, condition,
			source_url, sold_at, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare price-history batch: %w", err)
	}

	for _, comp := range comparables {
		err := batch.Append(
			comp.ID,
			comps.ProductKey(comp.ProductName),
			comp.Category,
			string(comp.Platform),
			comp.SoldPrice,
			string(comp.Condition),
			comp.SourceURL,
			comp.SoldAt,
			comp.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append price-history row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send price-history batch: %w", err)
	}

	return nil
}

// Recent retrieves comparables for a product key sold since the given time,
// newest first.
func (r *PriceHistoryRepository) Recent(ctx context.Context, productKey string, since time.Time) ([]models.Comparable, error) {
	query := `
		SELECT id, product_name, category, platform, sold_price, condition,
			   source_url, sold_at, recorded_at
		FROM price_history
		WHERE product_name = ? AND sold_at >= ?
		ORDER BY sold_at DESC
		LIMIT 500
	`

	rows, err := r.db.Conn().Query(ctx, query, productKey, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var comparables []models.Comparable
	for rows.Next() {
		var comp models.Comparable
		var platform, condition string

		err := rows.Scan(
			&comp.ID,
			&comp.ProductName,
			&comp.Category,
			&platform,
			&comp.SoldPrice,
			&condition,
			&comp.SourceURL,
			&comp.SoldAt,
			&comp.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price-history row: %w", err)
		}

		comp.Platform = types.Platform(platform)
		comp.Condition = types.Condition(condition)
		comparables = append(comparables, comp)
	}

	return comparables, rows.Err()
}

// CountForProduct returns how many comparable records exist for a product key
func (r *PriceHistoryRepository) CountForProduct(ctx context.Context, productKey string) (uint64, error) {
	query := `SELECT COUNT(*) FROM price_history WHERE product_name = ?`

	var count uint64
	if err := r.db.Conn().QueryRow(ctx, query, productKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count price history: %w", err)
	}

	return count, nil
}
