package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func seriesOf(values ...float64) domain.DailySeries {
	out := make(domain.DailySeries, len(values))
	for i, v := range values {
		out[i] = domain.DailyUsage{Date: day0.AddDate(0, 0, i), Total: v}
	}
	return out
}

func weeklySeries(weeks int) domain.DailySeries {
	pattern := []float64{8, 9, 10, 11, 18, 22, 12}
	values := make([]float64, 0, weeks*7)
	for w := 0; w < weeks; w++ {
		for i, v := range pattern {
			values = append(values, v+0.1*float64(w)+0.3*float64(i%2))
		}
	}
	return seriesOf(values...)
}

func assertBounds(t *testing.T, points []domain.ForecastPoint) {
	t.Helper()
	for _, p := range points {
		assert.GreaterOrEqual(t, p.LowerBound, 0.0, p.Date)
		assert.LessOrEqual(t, p.LowerBound, p.PointEstimate, p.Date)
		assert.LessOrEqual(t, p.PointEstimate, p.UpperBound, p.Date)
	}
}

type stubForecaster struct {
	name  string
	fit   func(ctx context.Context, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error)
	calls int
}

func (s *stubForecaster) Name() string { return s.name }

func (s *stubForecaster) Fit(ctx context.Context, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	s.calls++
	return s.fit(ctx, series, horizon)
}

func TestSeasonalForecasterShape(t *testing.T) {
	series := weeklySeries(6)
	f := NewSeasonalForecaster(DefaultMinPoints)

	points, err := f.Fit(context.Background(), series, 5)
	require.NoError(t, err)

	require.Len(t, points, len(series)+5)
	for i, p := range points[:len(series)] {
		assert.False(t, p.IsForecast)
		assert.Equal(t, series[i].Date, p.Date)
	}
	for h, p := range points[len(series):] {
		assert.True(t, p.IsForecast)
		assert.Equal(t, series.Last().Date.AddDate(0, 0, h+1), p.Date)
	}
	assertBounds(t, points)
}

func TestSeasonalForecasterBoundsWiden(t *testing.T) {
	points, err := NewSeasonalForecaster(DefaultMinPoints).Fit(context.Background(), weeklySeries(8), 7)
	require.NoError(t, err)

	var prev float64
	for _, p := range points {
		if !p.IsForecast {
			continue
		}
		width := p.UpperBound - p.PointEstimate
		assert.GreaterOrEqual(t, width, prev)
		prev = width
	}
}

func TestSeasonalForecasterExactCycleHasOpenBounds(t *testing.T) {
	pattern := []float64{8, 9, 10, 11, 18, 22, 12}
	var values []float64
	for w := 0; w < 4; w++ {
		values = append(values, pattern...)
	}
	engine := NewEngine(NewSeasonalForecaster(DefaultMinPoints), time.Second)

	result := engine.Forecast(context.Background(), seriesOf(values...), 7)

	require.False(t, result.Fallback, result.FallbackReason)
	assert.Equal(t, SeasonalName, result.Forecaster)
	var prev float64
	for _, p := range result.Future() {
		width := p.UpperBound - p.LowerBound
		assert.Greater(t, width, prev, p.Date)
		prev = width
	}
	assertBounds(t, result.Points)
}

func TestSeasonalForecasterKeepsWeeklyShape(t *testing.T) {
	points, err := NewSeasonalForecaster(DefaultMinPoints).Fit(context.Background(), weeklySeries(10), 7)
	require.NoError(t, err)

	future := points[len(points)-7:]
	// day0 is a Monday; the 5th and 6th days of the cycle carry the peak.
	byWeekday := map[time.Weekday]float64{}
	for _, p := range future {
		byWeekday[p.Date.Weekday()] = p.PointEstimate
	}
	assert.Greater(t, byWeekday[time.Saturday], byWeekday[time.Monday])
	assert.Greater(t, byWeekday[time.Friday], byWeekday[time.Tuesday])
}

func TestSeasonalForecasterFillsGaps(t *testing.T) {
	series := weeklySeries(4)
	gapped := append(domain.DailySeries{}, series[:10]...)
	gapped = append(gapped, series[13:]...)

	points, err := NewSeasonalForecaster(DefaultMinPoints).Fit(context.Background(), gapped, 3)
	require.NoError(t, err)

	assert.Len(t, points, len(gapped)+3)
	assertBounds(t, points)
}

func TestSeasonalForecasterRejects(t *testing.T) {
	f := NewSeasonalForecaster(DefaultMinPoints)

	_, err := f.Fit(context.Background(), seriesOf(1, 2, 3), 3)
	var fitErr *domain.ForecastFittingError
	require.True(t, errors.As(err, &fitErr))
	assert.Equal(t, "too few points", fitErr.Reason)

	flat := make([]float64, 21)
	for i := range flat {
		flat[i] = 4
	}
	_, err = f.Fit(context.Background(), seriesOf(flat...), 3)
	require.True(t, errors.As(err, &fitErr))
	assert.Equal(t, "zero variance", fitErr.Reason)
}

func TestSeasonalForecasterYearlyComponent(t *testing.T) {
	values := make([]float64, 760)
	for i := range values {
		date := day0.AddDate(0, 0, i)
		values[i] = 10 + float64(i%7)
		if date.Month() == time.December {
			values[i] += 15
		}
	}

	points, err := NewSeasonalForecaster(DefaultMinPoints).Fit(context.Background(), seriesOf(values...), 3)
	require.NoError(t, err)
	assert.Len(t, points, len(values)+3)
	assertBounds(t, points)
}

func TestEngineScenarioCIdenticalQuantities(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = 5
	}
	engine := NewEngine(NewSeasonalForecaster(DefaultMinPoints), time.Second)

	result := engine.Forecast(context.Background(), seriesOf(values...), 3)

	assert.True(t, result.Fallback)
	assert.Equal(t, FlatName, result.Forecaster)
	future := result.Future()
	require.Len(t, future, 3)
	for _, p := range result.Points {
		assert.Equal(t, 5.0, p.PointEstimate)
		assert.Greater(t, p.UpperBound, p.LowerBound)
		assert.InDelta(t, 5.0, p.LowerBound, 1e-5)
		assert.InDelta(t, 5.0, p.UpperBound, 1e-5)
	}
	assertBounds(t, result.Points)
}

func TestEngineZeroUsageIntervalNotDegenerate(t *testing.T) {
	result := NewEngine(nil, 0).Forecast(context.Background(), seriesOf(0, 0, 0), 2)

	for _, p := range result.Points {
		assert.Equal(t, 0.0, p.LowerBound)
		assert.Equal(t, 0.0, p.PointEstimate)
		assert.Equal(t, FlatEpsilon, p.UpperBound)
	}
}

func TestEngineTimeoutFallsBack(t *testing.T) {
	blocking := &stubForecaster{name: "slow", fit: func(ctx context.Context, _ domain.DailySeries, _ int) ([]domain.ForecastPoint, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil, ctx.Err()
	}}
	engine := NewEngine(blocking, 20*time.Millisecond)

	start := time.Now()
	result := engine.Forecast(context.Background(), weeklySeries(3), 3)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, result.Fallback)
	assert.Equal(t, "timeout", result.FallbackReason)
	assert.Len(t, result.Future(), 3)
}

func TestEngineRecoversPanics(t *testing.T) {
	panicky := &stubForecaster{name: "panicky", fit: func(context.Context, domain.DailySeries, int) ([]domain.ForecastPoint, error) {
		panic("boom")
	}}

	result := NewEngine(panicky, time.Second).Forecast(context.Background(), weeklySeries(3), 2)

	assert.True(t, result.Fallback)
	assert.Contains(t, result.FallbackReason, "panic")
}

func TestEngineRejectsInvalidOutput(t *testing.T) {
	series := weeklySeries(3)
	cases := map[string][]domain.ForecastPoint{
		"wrong horizon": {{Date: series.Last().Date.AddDate(0, 0, 1), PointEstimate: 1, UpperBound: 1, IsForecast: true}},
		"nan": {
			{Date: series.Last().Date.AddDate(0, 0, 1), PointEstimate: math.NaN(), IsForecast: true},
			{Date: series.Last().Date.AddDate(0, 0, 2), PointEstimate: 1, IsForecast: true},
		},
		"not future": {
			{Date: series.Last().Date, PointEstimate: 1, IsForecast: true},
			{Date: series.Last().Date.AddDate(0, 0, 1), PointEstimate: 1, IsForecast: true},
		},
	}

	for name, points := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &stubForecaster{name: "stub", fit: func(context.Context, domain.DailySeries, int) ([]domain.ForecastPoint, error) {
				return points, nil
			}}
			result := NewEngine(stub, time.Second).Forecast(context.Background(), series, 2)
			assert.True(t, result.Fallback)
			assert.Equal(t, "invalid output", result.FallbackReason)
		})
	}
}

func TestEngineClampsNegativeOutput(t *testing.T) {
	series := weeklySeries(3)
	stub := &stubForecaster{name: "stub", fit: func(context.Context, domain.DailySeries, int) ([]domain.ForecastPoint, error) {
		return []domain.ForecastPoint{
			{Date: series.Last().Date.AddDate(0, 0, 1), PointEstimate: -2, LowerBound: -4, UpperBound: 1, IsForecast: true},
		}, nil
	}}

	result := NewEngine(stub, time.Second).Forecast(context.Background(), series, 1)

	require.False(t, result.Fallback)
	assert.Equal(t, "stub", result.Forecaster)
	assert.Equal(t, domain.ForecastPoint{Date: series.Last().Date.AddDate(0, 0, 1), PointEstimate: 0, LowerBound: 0, UpperBound: 1, IsForecast: true}, result.Points[0])
}

func TestFlatProjectionUsesRecentWindow(t *testing.T) {
	series := domain.DailySeries{
		{Date: day0, Total: 100},
		{Date: day0.AddDate(0, 0, 10), Total: 4},
		{Date: day0.AddDate(0, 0, 12), Total: 6},
	}

	points := FlatProjection(series, 2)

	require.Len(t, points, 5)
	for _, p := range points {
		assert.Equal(t, 5.0, p.PointEstimate)
		assert.InDelta(t, 5-math.Sqrt2, p.LowerBound, 1e-9)
		assert.InDelta(t, 5+math.Sqrt2, p.UpperBound, 1e-9)
	}
	assert.Equal(t, day0.AddDate(0, 0, 14), points[4].Date)
	assert.Nil(t, FlatProjection(nil, 3))
}

func TestChainFallsThrough(t *testing.T) {
	series := weeklySeries(3)
	failing := &stubForecaster{name: "a", fit: func(context.Context, domain.DailySeries, int) ([]domain.ForecastPoint, error) {
		return nil, errors.New("down")
	}}
	working := &stubForecaster{name: "b", fit: func(_ context.Context, s domain.DailySeries, h int) ([]domain.ForecastPoint, error) {
		return FlatProjection(s, h), nil
	}}

	chain := Chain{failing, working}
	points, err := chain.Fit(context.Background(), series, 2)

	require.NoError(t, err)
	assert.Len(t, points, len(series)+2)
	assert.Equal(t, "a>b", chain.Name())
	assert.Equal(t, 1, failing.calls)

	_, err = Chain{failing}.Fit(context.Background(), series, 2)
	var fitErr *domain.ForecastFittingError
	require.True(t, errors.As(err, &fitErr))
	assert.Equal(t, "all forecasters failed", fitErr.Reason)
}

func TestChainSlowMemberLeavesTimeForNext(t *testing.T) {
	series := weeklySeries(3)
	hanging := &stubForecaster{name: "remote", fit: func(ctx context.Context, _ domain.DailySeries, _ int) ([]domain.ForecastPoint, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	local := &stubForecaster{name: "local", fit: func(ctx context.Context, s domain.DailySeries, h int) ([]domain.ForecastPoint, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return FlatProjection(s, h), nil
	}}

	result := NewEngine(Chain{hanging, local}, 200*time.Millisecond).Forecast(context.Background(), series, 2)

	assert.False(t, result.Fallback, result.FallbackReason)
	assert.Equal(t, "remote>local", result.Forecaster)
	assert.Equal(t, 1, hanging.calls)
	assert.Equal(t, 1, local.calls)
	assert.Len(t, result.Future(), 2)
}

func TestRemoteForecaster(t *testing.T) {
	series := weeklySeries(2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		var req remoteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Horizon)
		assert.Len(t, req.Series, len(series))

		_ = json.NewEncoder(w).Encode(remoteResponse{Forecast: []remotePoint{
			{Date: "2025-01-20", PointEstimate: 3, LowerBound: 2, UpperBound: 4, IsForecast: true},
			{Date: "2025-01-21", PointEstimate: 3, LowerBound: 1, UpperBound: 5, IsForecast: true},
		}})
	}))
	defer srv.Close()

	points, err := NewRemoteForecaster(srv.URL+"/", srv.Client()).Fit(context.Background(), series, 2)

	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC), points[1].Date)
}

func TestRemoteForecasterErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRemoteForecaster(srv.URL, nil).Fit(context.Background(), weeklySeries(2), 2)

	var fitErr *domain.ForecastFittingError
	require.True(t, errors.As(err, &fitErr))
	assert.Contains(t, fitErr.Error(), "503")
}
