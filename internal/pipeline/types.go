package pipeline

import (
	"errors"
	"time"
)

// ErrInvalidRequest marks a request rejected before any stage ran.
var ErrInvalidRequest = errors.New("invalid restock request")

// MaxHorizonDays bounds every requested forecast horizon.
const MaxHorizonDays = 365

// ValidHorizon reports whether days is an explicit horizon the analyzer accepts.
func ValidHorizon(days int) bool {
	return days >= 1 && days <= MaxHorizonDays
}

// Request asks for the restock analysis of one ingredient.
type Request struct {
	IngredientID int64
	CurrentStock float64
	// Horizon is the number of days to forecast. Zero uses the analyzer default.
	Horizon int
}

// Config holds configuration for an Analyzer
type Config struct {
	Horizon int
}

// DefaultConfig forecasts three days ahead.
func DefaultConfig() Config {
	return Config{Horizon: 3}
}

// JobStatus represents the state of one batch item
type JobStatus string

const (
	JobCompleted JobStatus = "completed"
	JobNoData    JobStatus = "no_data"
	JobFailed    JobStatus = "failed"
)

// BatchMetrics holds metrics for one batch run
type BatchMetrics struct {
	Total          int
	Completed      int
	NoData         int
	Failed         int
	Fallbacks      int
	SkippedRecords int
	Duration       time.Duration
	AverageLatency time.Duration
}
