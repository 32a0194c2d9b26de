package service

import (
	"context"
	"fmt"
	"math"

	"github.com/andresuchdata/restock/backend-go/internal/analytics"
	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline/restock"
	"github.com/andresuchdata/restock/backend-go/internal/repository"
)

// RestockService answers per-ingredient restock and usage questions.
type RestockService struct {
	analyzer  *pipeline.Analyzer
	inventory repository.InventoryRepository
}

// NewRestockService wires the service. inventory may be nil, in which case
// callers must always supply the current stock.
func NewRestockService(analyzer *pipeline.Analyzer, inventory repository.InventoryRepository) *RestockService {
	return &RestockService{analyzer: analyzer, inventory: inventory}
}

// Analyze runs the restock analysis. A nil currentStock is derived from the
// inventory as total stock minus recorded usage, floored at zero.
func (s *RestockService) Analyze(ctx context.Context, ingredientID int64, currentStock *float64, horizon int) (*domain.RestockAnalysis, error) {
	var stock float64
	if currentStock != nil {
		stock = *currentStock
	} else {
		derived, err := s.CurrentStock(ctx, ingredientID)
		if err != nil {
			return nil, err
		}
		stock = derived
	}

	return s.analyzer.Analyze(ctx, pipeline.Request{
		IngredientID: ingredientID,
		CurrentStock: stock,
		Horizon:      horizon,
	})
}

// CurrentStock derives the stock on hand from the inventory row and its usage total.
func (s *RestockService) CurrentStock(ctx context.Context, ingredientID int64) (float64, error) {
	if s.inventory == nil {
		return 0, fmt.Errorf("%w: current stock is required without an inventory", pipeline.ErrInvalidRequest)
	}

	item, err := s.inventory.GetInventoryItem(ctx, ingredientID)
	if err != nil {
		return 0, err
	}
	usage, err := s.inventory.TotalUsage(ctx)
	if err != nil {
		return 0, err
	}

	return math.Max(restock.AvailableStock(*item, usage[ingredientID]), 0), nil
}

// Stats describes the daily usage history of one ingredient.
func (s *RestockService) Stats(ctx context.Context, ingredientID int64) (domain.UsageStats, error) {
	series, _, err := s.analyzer.Series(ctx, ingredientID)
	if err != nil {
		return domain.UsageStats{}, err
	}
	return analytics.Describe(series), nil
}
