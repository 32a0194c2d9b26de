package restock

import (
	"errors"
	"fmt"
	"math"

	"github.com/andresuchdata/restock/backend-go/internal/analytics"
	"github.com/andresuchdata/restock/backend-go/internal/domain"
)

var (
	ErrNegativeStock = errors.New("current stock must be a non-negative number")
	ErrNoForecast    = errors.New("forecast has no future points")
)

// EstimateDepletion turns the current stock and the forecast horizon into
// days of cover.
//
//   - predicted usage is the mean point estimate of the last horizon forecast points
//   - recent average is the mean of the totals within the 7 days ending at the latest date
//   - days remaining is +Inf when no usage is predicted
//   - trend ratio is nil when the recent average is zero
func EstimateDepletion(currentStock float64, forecast []domain.ForecastPoint, series domain.DailySeries, horizon int) (domain.DepletionEstimate, error) {
	if currentStock < 0 || math.IsNaN(currentStock) || math.IsInf(currentStock, 0) {
		return domain.DepletionEstimate{}, fmt.Errorf("%w: %v", ErrNegativeStock, currentStock)
	}

	future := make([]float64, 0, horizon)
	for _, p := range forecast {
		if p.IsForecast {
			future = append(future, p.PointEstimate)
		}
	}
	if len(future) == 0 {
		return domain.DepletionEstimate{}, ErrNoForecast
	}
	if horizon > 0 && len(future) > horizon {
		future = future[len(future)-horizon:]
	}

	estimate := domain.DepletionEstimate{
		CurrentStock:        currentStock,
		PredictedDailyUsage: analytics.Mean(future),
		RecentDailyAverage:  analytics.Mean(series.Window(analytics.RecentWindowDays).Values()),
	}

	// 1. Days remaining
	if estimate.PredictedDailyUsage > 0 {
		estimate.DaysRemaining = currentStock / estimate.PredictedDailyUsage
	} else {
		estimate.DaysRemaining = math.Inf(1)
	}

	// 2. Trend ratio
	if estimate.RecentDailyAverage > 0 {
		ratio := estimate.PredictedDailyUsage / estimate.RecentDailyAverage
		estimate.TrendRatio = &ratio
	}

	return estimate, nil
}
