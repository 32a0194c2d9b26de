// Package forecast fits daily usage series and projects them forward.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Forecaster fits a daily series and returns a fitted point for every
// historical date followed by horizon future points.
type Forecaster interface {
	Name() string
	Fit(ctx context.Context, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error)
}

// Result is what the engine hands to the depletion estimator.
type Result struct {
	Points         []domain.ForecastPoint
	Forecaster     string
	Fallback       bool
	FallbackReason string
}

// Future returns the points with IsForecast set.
func (r Result) Future() []domain.ForecastPoint {
	out := make([]domain.ForecastPoint, 0)
	for _, p := range r.Points {
		if p.IsForecast {
			out = append(out, p)
		}
	}
	return out
}

// Engine runs a Forecaster under a deadline and falls back to the flat
// projection whenever fitting fails, times out or returns unusable points.
type Engine struct {
	forecaster Forecaster
	timeout    time.Duration
}

// NewEngine creates an engine. A nil forecaster means every request uses the
// flat projection.
func NewEngine(forecaster Forecaster, timeout time.Duration) *Engine {
	return &Engine{forecaster: forecaster, timeout: timeout}
}

type fitOutcome struct {
	points []domain.ForecastPoint
	err    error
}

// Forecast never fails for a non-empty series.
func (e *Engine) Forecast(ctx context.Context, series domain.DailySeries, horizon int) Result {
	if horizon < 1 {
		horizon = 1
	}
	if e.forecaster == nil {
		return e.fallback(series, horizon, &domain.ForecastFittingError{Forecaster: "none", Reason: "no forecaster configured"})
	}

	fitCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		fitCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	done := make(chan fitOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fitOutcome{err: &domain.ForecastFittingError{Forecaster: e.forecaster.Name(), Reason: fmt.Sprintf("panic: %v", r)}}
			}
		}()
		points, err := e.forecaster.Fit(fitCtx, series, horizon)
		done <- fitOutcome{points: points, err: err}
	}()

	var outcome fitOutcome
	select {
	case outcome = <-done:
	case <-fitCtx.Done():
		outcome.err = &domain.ForecastFittingError{Forecaster: e.forecaster.Name(), Reason: "timeout", Err: fitCtx.Err()}
	}

	if outcome.err == nil {
		outcome.points, outcome.err = sanitize(outcome.points, series, horizon)
		if outcome.err != nil {
			outcome.err = &domain.ForecastFittingError{Forecaster: e.forecaster.Name(), Reason: "invalid output", Err: outcome.err}
		}
	}
	if outcome.err != nil {
		return e.fallback(series, horizon, outcome.err)
	}

	return Result{Points: outcome.points, Forecaster: e.forecaster.Name()}
}

func (e *Engine) fallback(series domain.DailySeries, horizon int, cause error) Result {
	reason := "fitting failed"
	var fitErr *domain.ForecastFittingError
	if errors.As(cause, &fitErr) {
		reason = fitErr.Reason
	}

	log.Debug().Err(cause).Str("fallback_reason", reason).Msg("forecast: using flat projection")
	metrics.ForecastFallbacks.WithLabelValues(metricLabel(reason)).Inc()

	return Result{
		Points:         FlatProjection(series, horizon),
		Forecaster:     FlatName,
		Fallback:       true,
		FallbackReason: reason,
	}
}

func metricLabel(reason string) string {
	switch {
	case strings.HasPrefix(reason, "panic"):
		return "panic"
	case strings.HasPrefix(reason, "too few"):
		return "too_short"
	default:
		return strings.ReplaceAll(reason, " ", "_")
	}
}

// sanitize checks the forecaster output shape and enforces
// 0 <= lower <= point <= upper on every point.
func sanitize(points []domain.ForecastPoint, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	future := 0
	for i := range points {
		p := &points[i]
		if !finite(p.PointEstimate) || !finite(p.LowerBound) || !finite(p.UpperBound) {
			return nil, fmt.Errorf("point %d is not finite", i)
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			return nil, fmt.Errorf("point %d is out of order", i)
		}
		if p.IsForecast {
			future++
			if !p.Date.After(series.Last().Date) {
				return nil, fmt.Errorf("forecast point %d is not in the future", i)
			}
		}
		clampPoint(p)
	}
	if future != horizon {
		return nil, fmt.Errorf("expected %d forecast points, got %d", horizon, future)
	}
	return points, nil
}

func clampPoint(p *domain.ForecastPoint) {
	p.PointEstimate = math.Max(p.PointEstimate, 0)
	p.LowerBound = math.Min(math.Max(p.LowerBound, 0), p.PointEstimate)
	p.UpperBound = math.Max(p.UpperBound, p.PointEstimate)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Chain tries each forecaster in order and returns the first success. Under
// a deadline every member gets an equal share of the time still left, so a
// slow member cannot starve the ones after it.
type Chain []Forecaster

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, f := range c {
		names[i] = f.Name()
	}
	return strings.Join(names, ">")
}

func (c Chain) Fit(ctx context.Context, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	var errs []error
	for i, f := range c {
		points, err := fitShare(ctx, f, len(c)-i, series, horizon)
		if err == nil {
			return points, nil
		}
		if ctx.Err() != nil {
			return nil, &domain.ForecastFittingError{Forecaster: c.Name(), Reason: "timeout", Err: ctx.Err()}
		}
		log.Debug().Err(err).Str("forecaster", f.Name()).Msg("chain member failed")
		errs = append(errs, err)
	}
	return nil, &domain.ForecastFittingError{Forecaster: c.Name(), Reason: "all forecasters failed", Err: errors.Join(errs...)}
}

// fitShare runs f with 1/remaining of the time left before ctx's deadline.
func fitShare(ctx context.Context, f Forecaster, remaining int, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	deadline, ok := ctx.Deadline()
	if !ok || remaining <= 1 {
		return f.Fit(ctx, series, horizon)
	}
	shareCtx, cancel := context.WithTimeout(ctx, time.Until(deadline)/time.Duration(remaining))
	defer cancel()
	return f.Fit(shareCtx, series, horizon)
}
