// backend-go/internal/repository/repository.go
package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
)

// ErrItemNotFound is returned when an ingredient is not in the inventory.
var ErrItemNotFound = errors.New("inventory item not found")

// UsageSource is the read-only usage ledger the pipeline consumes.
type UsageSource interface {
	Usage(ctx context.Context, ingredientID int64) ([]domain.UsageRecord, error)
}

// InventoryRepository lists the ingredients tracked in the inventory.
type InventoryRepository interface {
	ListInventory(ctx context.Context) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, ingredientID int64) (*domain.InventoryItem, error)
	TotalUsage(ctx context.Context) (map[int64]float64, error)
}

// UsageWriter appends usage records to the ledger.
type UsageWriter interface {
	InsertUsage(ctx context.Context, records []domain.UsageRecord) (int, error)
}

// UsageSourceFunc adapts a function to UsageSource.
type UsageSourceFunc func(ctx context.Context, ingredientID int64) ([]domain.UsageRecord, error)

func (f UsageSourceFunc) Usage(ctx context.Context, ingredientID int64) ([]domain.UsageRecord, error) {
	return f(ctx, ingredientID)
}
