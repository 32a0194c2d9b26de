package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/jmoiron/sqlx"
)

type usageRepository struct {
	db *DB
}

func NewUsageRepository(db *DB) *usageRepository {
	return &usageRepository{db: db}
}

// Usage returns the raw ledger rows for one ingredient. Columns are read as
// text so rows the aggregator will reject still reach it.
func (r *usageRepository) Usage(ctx context.Context, ingredientID int64) ([]domain.UsageRecord, error) {
	query := `
		SELECT
			ingredient_id,
			COALESCE(quantity_used::text, '') AS quantity_used,
			COALESCE(usage_date::text, '') AS usage_date
		FROM ingredient_usage_table
		WHERE ingredient_id = $1
		ORDER BY usage_date
	`

	var records []domain.UsageRecord
	err := r.db.withConn(ctx, func() error {
		return r.db.SelectContext(ctx, &records, query, ingredientID)
	})
	if err != nil {
		return nil, fmt.Errorf("error getting usage for ingredient %d: %w", ingredientID, err)
	}

	return records, nil
}

// InsertUsage writes the records in one transaction and returns how many
// rows were inserted.
func (r *usageRepository) InsertUsage(ctx context.Context, records []domain.UsageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO ingredient_usage_table (ingredient_id, quantity_used, usage_date)
			VALUES ($1, $2::numeric, $3::date)
		`

		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, rec := range records {
			if _, err := stmt.ExecContext(ctx, rec.IngredientID, rec.Quantity, rec.Date); err != nil {
				return fmt.Errorf("failed to insert usage record %d: %w", i, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}
