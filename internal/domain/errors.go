package domain

import (
	"errors"
	"fmt"
)

// Stage names a step of the restock pipeline for error reports.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageAggregate Stage = "aggregate"
	StageForecast  Stage = "forecast"
	StageDepletion Stage = "depletion"
	StageAdvise    Stage = "advise"
)

// InsufficientDataError means no valid usage history exists for an ingredient.
// It is distinct from an ingredient that was used zero times.
type InsufficientDataError struct {
	IngredientID int64
	Skipped      int
}

func (e *InsufficientDataError) Error() string {
	if e.Skipped > 0 {
		return fmt.Sprintf("no valid usage data for ingredient %d (%d malformed records skipped)", e.IngredientID, e.Skipped)
	}
	return fmt.Sprintf("no usage data for ingredient %d", e.IngredientID)
}

// MalformedRecordError describes a usage record dropped during aggregation.
type MalformedRecordError struct {
	Index  int
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: invalid %s %q: %s", e.Index, e.Field, e.Value, e.Reason)
}

// ForecastFittingError means a forecaster could not produce a usable forecast.
// The engine recovers from it with the flat projection.
type ForecastFittingError struct {
	Forecaster string
	Reason     string
	Err        error
}

func (e *ForecastFittingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s forecast fitting failed: %s: %v", e.Forecaster, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s forecast fitting failed: %s", e.Forecaster, e.Reason)
}

func (e *ForecastFittingError) Unwrap() error {
	return e.Err
}

// StageError wraps an unexpected failure with the ingredient and stage it hit.
type StageError struct {
	IngredientID int64
	Stage        Stage
	Err          error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingredient %d: %s stage: %v", e.IngredientID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsInsufficientData reports whether err carries an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}
