package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/cache"
	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/forecast"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline/restock"
	"github.com/andresuchdata/restock/backend-go/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySource struct {
	mu      sync.Mutex
	records map[int64][]domain.UsageRecord
	calls   int32
	err     error
	delay   time.Duration
}

func (s *memorySource) Usage(ctx context.Context, id int64) ([]domain.UsageRecord, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UsageRecord(nil), s.records[id]...), nil
}

func usage(id int64, start time.Time, values ...float64) []domain.UsageRecord {
	out := make([]domain.UsageRecord, len(values))
	for i, v := range values {
		out[i] = domain.UsageRecord{
			IngredientID: id,
			Quantity:     fmt.Sprintf("%g", v),
			Date:         start.AddDate(0, 0, i).Format(domain.DateLayout),
		}
	}
	return out
}

var start = time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)

func newAnalyzer(src repository.UsageSource, opts ...Option) *Analyzer {
	engine := forecast.NewEngine(forecast.NewSeasonalForecaster(forecast.DefaultMinPoints), time.Second)
	return NewAnalyzer(src, engine, restock.NewAdvisor(restock.DefaultThresholds), opts...)
}

func TestAnalyzeScenarioA(t *testing.T) {
	src := &memorySource{records: map[int64][]domain.UsageRecord{
		1: usage(1, start, 10, 12, 11, 13, 12, 11, 14),
	}}

	analysis, err := newAnalyzer(src).Analyze(context.Background(), Request{IngredientID: 1, CurrentStock: 20, Horizon: 3})
	require.NoError(t, err)

	assert.InDelta(t, 12.5, analysis.Depletion.PredictedDailyUsage, 1)
	assert.InDelta(t, 12.5, analysis.Depletion.RecentDailyAverage, 1)
	assert.InDelta(t, 1.6, analysis.Depletion.DaysRemaining, 0.1)
	assert.Equal(t, domain.UrgencyHigh, analysis.Decision.Level)
	assert.Equal(t, restock.MessageCritical, analysis.Decision.Message)
	assert.True(t, analysis.Fallback)
	assert.Len(t, analysis.HorizonForecast(), 3)
	assert.Equal(t, 7, analysis.HistoryDays)
}

func TestAnalyzeScenarioBNoEvents(t *testing.T) {
	engineCalls := 0
	stub := stubForecaster(func() { engineCalls++ })
	analyzer := NewAnalyzer(&memorySource{}, forecast.NewEngine(stub, time.Second), nil)

	_, err := analyzer.Analyze(context.Background(), Request{IngredientID: 404, CurrentStock: 5})

	assert.True(t, domain.IsInsufficientData(err))
	assert.Equal(t, 0, engineCalls)
}

func TestAnalyzeSeasonalHistory(t *testing.T) {
	pattern := []float64{4, 5, 6, 5, 9, 12, 7}
	var values []float64
	for w := 0; w < 6; w++ {
		values = append(values, pattern...)
	}
	records := usage(2, start, values...)
	records = append(records, domain.UsageRecord{IngredientID: 2, Quantity: "-3", Date: "2025-02-04"})
	src := &memorySource{records: map[int64][]domain.UsageRecord{2: records}}

	analysis, err := newAnalyzer(src).Analyze(context.Background(), Request{IngredientID: 2, CurrentStock: 500, Horizon: 7})
	require.NoError(t, err)

	assert.False(t, analysis.Fallback)
	assert.Equal(t, forecast.SeasonalName, analysis.Forecaster)
	assert.Equal(t, 1, analysis.SkippedRecords)
	assert.Len(t, analysis.Forecast, len(values)+7)
	assert.Equal(t, domain.UrgencyLow, analysis.Decision.Level)
	for _, p := range analysis.Forecast {
		assert.LessOrEqual(t, p.LowerBound, p.PointEstimate)
		assert.LessOrEqual(t, p.PointEstimate, p.UpperBound)
		assert.GreaterOrEqual(t, p.LowerBound, 0.0)
	}
}

func TestAnalyzeZeroUsage(t *testing.T) {
	src := &memorySource{records: map[int64][]domain.UsageRecord{3: usage(3, start, 0, 0, 0)}}

	analysis, err := newAnalyzer(src).Analyze(context.Background(), Request{IngredientID: 3, CurrentStock: 10})
	require.NoError(t, err)

	assert.True(t, math.IsInf(analysis.Depletion.DaysRemaining, 1))
	assert.Nil(t, analysis.Depletion.TrendRatio)
	assert.Equal(t, domain.UrgencyLow, analysis.Decision.Level)

	raw, err := json.Marshal(analysis)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"days_remaining":null`)
	assert.Contains(t, string(raw), `"trend_ratio":null`)
}

func TestAnalyzeFetchFailureCarriesStage(t *testing.T) {
	down := errors.New("connection refused")
	_, err := newAnalyzer(&memorySource{err: down}).Analyze(context.Background(), Request{IngredientID: 8, CurrentStock: 1})

	var stageErr *domain.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, domain.StageFetch, stageErr.Stage)
	assert.Equal(t, int64(8), stageErr.IngredientID)
	assert.ErrorIs(t, err, down)
}

func TestAnalyzeRejectsNegativeStock(t *testing.T) {
	src := &memorySource{}
	_, err := newAnalyzer(src).Analyze(context.Background(), Request{IngredientID: 1, CurrentStock: -2})

	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.calls))
}

func TestAnalyzeRejectsHorizonBeyondOneYear(t *testing.T) {
	src := &memorySource{}
	_, err := newAnalyzer(src).Analyze(context.Background(), Request{IngredientID: 1, CurrentStock: 2, Horizon: MaxHorizonDays + 1})

	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.calls))
	assert.True(t, ValidHorizon(1))
	assert.True(t, ValidHorizon(MaxHorizonDays))
	assert.False(t, ValidHorizon(0))
	assert.False(t, ValidHorizon(-3))
}

func TestAnalyzeDefaultHorizon(t *testing.T) {
	src := &memorySource{records: map[int64][]domain.UsageRecord{1: usage(1, start, 3, 4, 5)}}

	analysis, err := newAnalyzer(src, WithConfig(Config{Horizon: 5})).Analyze(context.Background(), Request{IngredientID: 1, CurrentStock: 9})
	require.NoError(t, err)

	assert.Equal(t, 5, analysis.Horizon)
	assert.Len(t, analysis.HorizonForecast(), 5)
}

func TestAnalyzeMemoizedMatchesUncached(t *testing.T) {
	src := &memorySource{records: map[int64][]domain.UsageRecord{1: usage(1, start, 5, 6, 7, 6, 5, 8, 9)}}
	fixed := func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	memo := cache.NewMemo(5*time.Minute, cache.WithClock(fixed))

	cached := newAnalyzer(src, WithMemo(memo), WithClock(fixed))
	plain := newAnalyzer(src, WithClock(fixed))
	req := Request{IngredientID: 1, CurrentStock: 30, Horizon: 3}

	first, err := cached.Analyze(context.Background(), req)
	require.NoError(t, err)
	second, err := cached.Analyze(context.Background(), req)
	require.NoError(t, err)
	uncached, err := plain.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
	assert.Equal(t, *uncached, *first)

	memo.Purge()
	third, err := cached.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, *first, *third)
}

func TestAnalyzeConcurrentRequestsComputeOnce(t *testing.T) {
	src := &memorySource{
		records: map[int64][]domain.UsageRecord{1: usage(1, start, 5, 6, 7)},
		delay:   30 * time.Millisecond,
	}
	fixed := func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	analyzer := newAnalyzer(src, WithMemo(cache.NewMemo(time.Minute, cache.WithClock(fixed))))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := analyzer.Analyze(context.Background(), Request{IngredientID: 1, CurrentStock: 10})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}

type countingForecaster struct {
	onFit func()
}

func (c countingForecaster) Name() string { return "counting" }

func (c countingForecaster) Fit(_ context.Context, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	c.onFit()
	return forecast.FlatProjection(series, horizon), nil
}

func stubForecaster(onFit func()) forecast.Forecaster {
	return countingForecaster{onFit: onFit}
}
