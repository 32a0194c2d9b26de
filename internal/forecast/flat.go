package forecast

import (
	"math"

	"github.com/andresuchdata/restock/backend-go/internal/analytics"
	"github.com/andresuchdata/restock/backend-go/internal/domain"
)

const (
	// FlatName identifies flat-projection results.
	FlatName = "flat"
	// FlatEpsilon is the half-width used when the recent window has no
	// spread, so the interval is never degenerate.
	FlatEpsilon = 1e-6
)

// FlatProjection projects the recent daily average over every historical
// date and horizon future days. The half-width is the sample standard
// deviation of the recent window, or FlatEpsilon when that deviation is zero.
func FlatProjection(series domain.DailySeries, horizon int) []domain.ForecastPoint {
	if len(series) == 0 {
		return nil
	}

	recent := series.Window(analytics.RecentWindowDays).Values()
	point := analytics.Mean(recent)
	half := analytics.StdDev(recent)
	if half == 0 {
		half = FlatEpsilon
	}

	flat := func(p *domain.ForecastPoint) {
		p.PointEstimate = point
		p.LowerBound = math.Max(point-half, 0)
		p.UpperBound = point + half
	}

	out := make([]domain.ForecastPoint, 0, len(series)+horizon)
	for _, d := range series {
		p := domain.ForecastPoint{Date: d.Date}
		flat(&p)
		out = append(out, p)
	}
	last := series.Last().Date
	for h := 1; h <= horizon; h++ {
		p := domain.ForecastPoint{Date: last.AddDate(0, 0, h), IsForecast: true}
		flat(&p)
		out = append(out, p)
	}
	return out
}
