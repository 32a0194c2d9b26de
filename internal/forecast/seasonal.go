package forecast

import (
	"context"
	"math"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/analytics"
	"github.com/andresuchdata/restock/backend-go/internal/domain"
)

const (
	// SeasonalName identifies the Holt-Winters forecaster.
	SeasonalName = "seasonal"
	// DefaultMinPoints is two full weekly cycles.
	DefaultMinPoints = 2 * analytics.WeeklyPeriod
	// yearlyMinSpanDays is the calendar span needed before a yearly component is fitted.
	yearlyMinSpanDays = 730
	// intervalZ gives an 80% interval.
	intervalZ = 1.2815515655446004
	// minSigmaShare floors the residual sigma as a share of the series std so
	// an exactly periodic fit still yields bounds that widen with the horizon.
	minSigmaShare = 0.01
)

var (
	alphaGrid = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	betaGrid  = []float64{0.01, 0.05, 0.1, 0.2}
	gammaGrid = []float64{0.05, 0.1, 0.2, 0.3, 0.5}
)

// SeasonalForecaster is an additive Holt-Winters model (level, additive trend,
// weekly season) over the daily calendar, with a month-of-year component once
// two years of history exist. Smoothing parameters are chosen by grid search
// on one-step-ahead squared error.
type SeasonalForecaster struct {
	MinPoints int
	Period    int
}

// NewSeasonalForecaster creates a weekly forecaster requiring minPoints
// observed days.
func NewSeasonalForecaster(minPoints int) *SeasonalForecaster {
	if minPoints < DefaultMinPoints {
		minPoints = DefaultMinPoints
	}
	return &SeasonalForecaster{MinPoints: minPoints, Period: analytics.WeeklyPeriod}
}

func (f *SeasonalForecaster) Name() string {
	return SeasonalName
}

type hwParams struct {
	alpha, beta, gamma float64
}

type hwState struct {
	fitted  []float64
	level   float64
	trend   float64
	seasons []float64
	sse     float64
}

func (f *SeasonalForecaster) Fit(ctx context.Context, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	if len(series) < f.MinPoints {
		return nil, &domain.ForecastFittingError{Forecaster: SeasonalName, Reason: "too few points"}
	}
	seriesStd := analytics.StdDev(series.Values())
	if seriesStd == 0 {
		return nil, &domain.ForecastFittingError{Forecaster: SeasonalName, Reason: "zero variance"}
	}

	calendar, observed := fillCalendar(series)
	if len(calendar) < 2*f.Period {
		return nil, &domain.ForecastFittingError{Forecaster: SeasonalName, Reason: "too few points"}
	}

	var best *hwState
	for _, a := range alphaGrid {
		if err := ctx.Err(); err != nil {
			return nil, &domain.ForecastFittingError{Forecaster: SeasonalName, Reason: "timeout", Err: err}
		}
		for _, b := range betaGrid {
			for _, g := range gammaGrid {
				state := f.run(calendar, observed, hwParams{alpha: a, beta: b, gamma: g})
				if best == nil || state.sse < best.sse {
					best = state
				}
			}
		}
	}

	start := series[0].Date
	fitted := best.fitted
	yearly := yearlyIndex(start, calendar, fitted, observed)
	if yearly != nil {
		fitted = make([]float64, len(best.fitted))
		for t := range fitted {
			fitted[t] = best.fitted[t] + yearly[monthIndex(start, t)]
		}
	}

	sigma := residualSigma(calendar, fitted, observed, f.Period)
	if !finite(sigma) {
		return nil, &domain.ForecastFittingError{Forecaster: SeasonalName, Reason: "non-finite residuals"}
	}
	sigma = math.Max(sigma, math.Max(minSigmaShare*seriesStd, FlatEpsilon))
	half := intervalZ * sigma

	out := make([]domain.ForecastPoint, 0, len(series)+horizon)
	for t := range calendar {
		if !observed[t] {
			continue
		}
		out = append(out, bounded(start.AddDate(0, 0, t), fitted[t], half, false))
	}

	n := len(calendar)
	for h := 1; h <= horizon; h++ {
		t := n - 1 + h
		point := best.level + float64(h)*best.trend + best.seasons[t%f.Period]
		if yearly != nil {
			point += yearly[monthIndex(start, t)]
		}
		out = append(out, bounded(start.AddDate(0, 0, t), point, half*math.Sqrt(float64(h)), true))
	}

	return out, nil
}

// run executes one Holt-Winters pass. The first period initializes level,
// trend and seasons; squared error is accumulated over observed days after it.
func (f *SeasonalForecaster) run(y []float64, observed []bool, p hwParams) *hwState {
	m := f.Period
	first := analytics.Mean(y[:m])
	second := analytics.Mean(y[m : 2*m])

	state := &hwState{
		fitted:  make([]float64, len(y)),
		level:   first,
		trend:   (second - first) / float64(m),
		seasons: make([]float64, m),
	}
	for i := 0; i < m; i++ {
		state.seasons[i] = y[i] - first
		state.fitted[i] = first + state.seasons[i]
	}

	for t := m; t < len(y); t++ {
		s := state.seasons[t%m]
		forecast := state.level + state.trend + s
		state.fitted[t] = forecast
		if observed[t] {
			err := y[t] - forecast
			state.sse += err * err
		}

		prevLevel := state.level
		state.level = p.alpha*(y[t]-s) + (1-p.alpha)*(state.level+state.trend)
		state.trend = p.beta*(state.level-prevLevel) + (1-p.beta)*state.trend
		state.seasons[t%m] = p.gamma*(y[t]-state.level) + (1-p.gamma)*s
	}
	return state
}

// fillCalendar expands the series onto consecutive days, linearly
// interpolating days without records so the seasonal recursion stays aligned.
func fillCalendar(series domain.DailySeries) ([]float64, []bool) {
	start := series[0].Date
	days := daysBetween(start, series.Last().Date) + 1
	values := make([]float64, days)
	observed := make([]bool, days)

	for i, d := range series {
		t := daysBetween(start, d.Date)
		values[t] = d.Total
		observed[t] = true
		if i == 0 {
			continue
		}
		prevT := daysBetween(start, series[i-1].Date)
		gap := t - prevT
		for k := 1; k < gap; k++ {
			frac := float64(k) / float64(gap)
			values[prevT+k] = series[i-1].Total + frac*(d.Total-series[i-1].Total)
		}
	}
	return values, observed
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

func monthIndex(start time.Time, t int) int {
	return int(start.AddDate(0, 0, t).Month()) - 1
}

// yearlyIndex returns the mean residual per calendar month once the series
// spans two years, or nil.
func yearlyIndex(start time.Time, y, fitted []float64, observed []bool) []float64 {
	if len(y) < yearlyMinSpanDays {
		return nil
	}
	sums := make([]float64, 12)
	counts := make([]int, 12)
	for t := range y {
		if !observed[t] {
			continue
		}
		month := monthIndex(start, t)
		sums[month] += y[t] - fitted[t]
		counts[month]++
	}
	index := make([]float64, 12)
	for i := range index {
		if counts[i] > 0 {
			index[i] = sums[i] / float64(counts[i])
		}
	}
	shift := analytics.Mean(index)
	for i := range index {
		index[i] -= shift
	}
	return index
}

func residualSigma(y, fitted []float64, observed []bool, skip int) float64 {
	var ss float64
	n := 0
	for t := skip; t < len(y); t++ {
		if !observed[t] {
			continue
		}
		r := y[t] - fitted[t]
		ss += r * r
		n++
	}
	if n < 2 {
		return 0
	}
	return math.Sqrt(ss / float64(n-1))
}

func bounded(date time.Time, point, half float64, future bool) domain.ForecastPoint {
	p := domain.ForecastPoint{
		Date:          date,
		PointEstimate: point,
		LowerBound:    point - half,
		UpperBound:    point + half,
		IsForecast:    future,
	}
	clampPoint(&p)
	return p
}
