package restock

import (
	"math"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
)

const (
	// warningStockRatio is the share of total stock under which an item is
	// flagged as a warning.
	warningStockRatio = 0.3
	// criticalReportRatio is the share of total stock under which an item is
	// listed among the critical items of the inventory report.
	criticalReportRatio = 0.2
)

// StockCalculator classifies inventory levels against each item's safety factor.
type StockCalculator struct{}

// NewStockCalculator creates a new stock calculator
func NewStockCalculator() *StockCalculator {
	return &StockCalculator{}
}

// AvailableStock is the total stock minus everything used so far.
func AvailableStock(item domain.InventoryItem, totalUsage float64) float64 {
	return item.TotalStock - totalUsage
}

// Calculate computes the stock health of an item holding currentStock.
func (sc *StockCalculator) Calculate(item domain.InventoryItem, currentStock float64) domain.StockHealth {
	health := domain.StockHealth{CurrentStock: currentStock}

	// 1. Safe threshold = total stock × safe factor %
	health.SafeThreshold = roundFloat(item.TotalStock*item.SafeFactor/100, 4)

	// 2. Share of total stock still available
	if item.TotalStock > 0 {
		health.StockPercent = roundFloat(currentStock/item.TotalStock*100, 1)
	}

	// 3. Status
	switch {
	case currentStock < health.SafeThreshold:
		health.Status = domain.StockCritical
	case currentStock < item.TotalStock*warningStockRatio:
		health.Status = domain.StockWarning
	default:
		health.Status = domain.StockGood
	}

	return health
}

// IsCritical reports whether the available stock fell under 20% of the total.
func (sc *StockCalculator) IsCritical(item domain.InventoryItem, available float64) bool {
	return available < item.TotalStock*criticalReportRatio
}

// roundFloat rounds v to the given number of decimal places.
func roundFloat(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}

	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
