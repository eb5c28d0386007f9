package storage

import (
	"context"
	"fmt"
)

// priceHistorySchema is the append-only comparable-sales table. MergeTree
// ordered by (product_name, sold_at) keeps per-product lookbacks cheap.
const priceHistorySchema = `
CREATE TABLE IF NOT EXISTS price_history (
	id String,
	product_name String,
	category String,
	platform String,
	sold_price Float64,
	condition String,
	source_url String,
	sold_at DateTime,
	recorded_at DateTime
)
ENGINE = MergeTree()
ORDER BY (product_name, sold_at)
TTL sold_at + INTERVAL 2 YEAR
`

// EnsureClickHouseSchema creates the ClickHouse tables if they do not exist
func EnsureClickHouseSchema(ctx context.Context, db *ClickHouseDB) error {
	if err := db.Exec(ctx, priceHistorySchema); err != nil {
		return fmt.Errorf("failed to create price_history table: %w", err)
	}
	return nil
}
