package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/repository"
)

const inventoryColumns = `
	ingredient_id,
	ingredient_name,
	COALESCE(unit, '') AS unit,
	COALESCE(total_stock, 0) AS total_stock,
	COALESCE(safe_factor, 0) AS safe_factor
`

type inventoryRepository struct {
	db *DB
}

func NewInventoryRepository(db *DB) *inventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_table ORDER BY ingredient_name`

	var items []domain.InventoryItem
	err := r.db.withConn(ctx, func() error {
		return r.db.SelectContext(ctx, &items, query)
	})
	if err != nil {
		return nil, fmt.Errorf("error listing inventory: %w", err)
	}

	return items, nil
}

func (r *inventoryRepository) GetInventoryItem(ctx context.Context, ingredientID int64) (*domain.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_table WHERE ingredient_id = $1`

	var item domain.InventoryItem
	err := r.db.withConn(ctx, func() error {
		return r.db.GetContext(ctx, &item, query, ingredientID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ingredient %d: %w", ingredientID, repository.ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting inventory item %d: %w", ingredientID, err)
	}

	return &item, nil
}

type usageTotalRow struct {
	IngredientID int64   `db:"ingredient_id"`
	TotalUsage   float64 `db:"total_usage"`
}

// TotalUsage sums the whole ledger per ingredient.
func (r *inventoryRepository) TotalUsage(ctx context.Context) (map[int64]float64, error) {
	query := `
		SELECT ingredient_id, COALESCE(SUM(quantity_used), 0)::float8 AS total_usage
		FROM ingredient_usage_table
		WHERE quantity_used >= 0
		GROUP BY ingredient_id
	`

	var rows []usageTotalRow
	err := r.db.withConn(ctx, func() error {
		return r.db.SelectContext(ctx, &rows, query)
	})
	if err != nil {
		return nil, fmt.Errorf("error getting usage totals: %w", err)
	}

	totals := make(map[int64]float64, len(rows))
	for _, row := range rows {
		totals[row.IngredientID] = row.TotalUsage
	}
	return totals, nil
}
