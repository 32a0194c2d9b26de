package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/analytics"
	"github.com/andresuchdata/restock/backend-go/internal/cache"
	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/forecast"
	"github.com/andresuchdata/restock/backend-go/internal/metrics"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline/restock"
	"github.com/andresuchdata/restock/backend-go/internal/repository"
	"github.com/andresuchdata/restock/backend-go/pkg/logger"
)

// Analyzer runs the restock chain for one ingredient: fetch usage, aggregate
// it per day, forecast, estimate depletion and advise. Each request builds its
// values fresh; the memo is the only state shared between requests.
type Analyzer struct {
	source  repository.UsageSource
	engine  *forecast.Engine
	advisor *restock.Advisor
	memo    *cache.Memo
	config  Config
	now     func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMemo caches analyses in memo. Without it every request recomputes.
func WithMemo(memo *cache.Memo) Option {
	return func(a *Analyzer) { a.memo = memo }
}

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(a *Analyzer) {
		if cfg.Horizon > 0 {
			a.config.Horizon = cfg.Horizon
		}
	}
}

// WithClock replaces time.Now for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func NewAnalyzer(source repository.UsageSource, engine *forecast.Engine, advisor *restock.Advisor, opts ...Option) *Analyzer {
	if engine == nil {
		engine = forecast.NewEngine(nil, 0)
	}
	if advisor == nil {
		advisor = restock.NewAdvisor(restock.DefaultThresholds)
	}
	a := &Analyzer{
		source:  source,
		engine:  engine,
		advisor: advisor,
		config:  DefaultConfig(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Horizon is the default forecast horizon.
func (a *Analyzer) Horizon() int {
	return a.config.Horizon
}

// Analyze returns the restock analysis for req, served from the memo when one
// was computed for the same ingredient, stock and horizon in this window.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*domain.RestockAnalysis, error) {
	if req.Horizon <= 0 {
		req.Horizon = a.config.Horizon
	}
	if !ValidHorizon(req.Horizon) {
		return nil, fmt.Errorf("%w: horizon must be between 1 and %d days", ErrInvalidRequest, MaxHorizonDays)
	}
	if req.CurrentStock < 0 || math.IsNaN(req.CurrentStock) || math.IsInf(req.CurrentStock, 0) {
		return nil, fmt.Errorf("%w: current stock must be a non-negative number", ErrInvalidRequest)
	}

	if a.memo == nil {
		return a.compute(ctx, req)
	}
	key := a.memo.Key(req.IngredientID, req.CurrentStock, req.Horizon)
	return a.memo.Do(ctx, key, func(ctx context.Context) (*domain.RestockAnalysis, error) {
		return a.compute(ctx, req)
	})
}

// Series fetches and aggregates the usage history of one ingredient.
func (a *Analyzer) Series(ctx context.Context, ingredientID int64) (domain.DailySeries, analytics.AggregationReport, error) {
	records, err := a.source.Usage(ctx, ingredientID)
	if err != nil {
		return nil, analytics.AggregationReport{}, &domain.StageError{IngredientID: ingredientID, Stage: domain.StageFetch, Err: err}
	}

	series, report, err := analytics.AggregateDaily(ingredientID, records)
	if report.Skipped > 0 {
		metrics.SkippedRecords.Add(float64(report.Skipped))
		l := logger.Ingredient(ingredientID)
		l.Warn().
			Str("stage", string(domain.StageAggregate)).
			Int("skipped", report.Skipped).
			Int("total", report.Total).
			Msg("skipped malformed usage records")
	}
	if err != nil {
		return nil, report, err
	}
	return series, report, nil
}

func (a *Analyzer) compute(ctx context.Context, req Request) (*domain.RestockAnalysis, error) {
	start := time.Now()
	log := logger.Ingredient(req.IngredientID)

	series, report, err := a.Series(ctx, req.IngredientID)
	if err != nil {
		if domain.IsInsufficientData(err) {
			metrics.Analyses.WithLabelValues("no_data").Inc()
		} else {
			metrics.Analyses.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("restock analysis failed")
		}
		return nil, err
	}

	result := a.engine.Forecast(ctx, series, req.Horizon)
	if result.Fallback {
		log.Info().
			Str("stage", string(domain.StageForecast)).
			Str("fallback_reason", result.FallbackReason).
			Msg("forecast fell back to flat projection")
	}

	estimate, err := restock.EstimateDepletion(req.CurrentStock, result.Points, series, req.Horizon)
	if err != nil {
		metrics.Analyses.WithLabelValues("error").Inc()
		stageErr := &domain.StageError{IngredientID: req.IngredientID, Stage: domain.StageDepletion, Err: err}
		log.Error().Err(stageErr).Msg("restock analysis failed")
		return nil, stageErr
	}

	decision := a.advisor.Advise(estimate)
	metrics.UrgencyDecisions.WithLabelValues(string(decision.Level)).Inc()

	analysis := &domain.RestockAnalysis{
		IngredientID:   req.IngredientID,
		Horizon:        req.Horizon,
		Depletion:      estimate,
		Decision:       decision,
		Forecast:       result.Points,
		Forecaster:     result.Forecaster,
		Fallback:       result.Fallback,
		FallbackReason: result.FallbackReason,
		SkippedRecords: report.Skipped,
		HistoryDays:    len(series),
		GeneratedAt:    a.now().UTC(),
	}

	elapsed := time.Since(start)
	metrics.Analyses.WithLabelValues("ok").Inc()
	metrics.AnalysisDuration.WithLabelValues(result.Forecaster).Observe(elapsed.Seconds())
	log.Debug().
		Str("forecaster", result.Forecaster).
		Str("urgency", string(decision.Level)).
		Dur("latency", elapsed).
		Msg("restock analysis computed")

	return analysis, nil
}
