// backend-go/internal/domain/models.go
package domain

import (
	"encoding/json"
	"math"
	"time"
)

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

// UsageRecord is a raw row from the usage ledger. Fields stay as text until
// the aggregator validates them.
type UsageRecord struct {
	IngredientID int64  `json:"ingredient_id" db:"ingredient_id"`
	Quantity     string `json:"quantity_used" db:"quantity_used"`
	Date         string `json:"usage_date" db:"usage_date"`
}

// UsageEvent is a validated usage record.
type UsageEvent struct {
	IngredientID int64
	Date         time.Time
	Quantity     float64
}

// DailyUsage is the total quantity consumed on one calendar date.
type DailyUsage struct {
	Date  time.Time `json:"date"`
	Total float64   `json:"total_quantity"`
}

// DailySeries is ascending by date with unique dates.
type DailySeries []DailyUsage

// Last returns the most recent entry.
func (s DailySeries) Last() DailyUsage {
	return s[len(s)-1]
}

// Values returns the totals in date order.
func (s DailySeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, d := range s {
		out[i] = d.Total
	}
	return out
}

// Window returns the entries dated within the given number of calendar days
// ending at the latest date. Absent days are simply not present.
func (s DailySeries) Window(days int) DailySeries {
	if len(s) == 0 || days <= 0 {
		return nil
	}
	cutoff := s.Last().Date.AddDate(0, 0, -days)
	start := len(s)
	for start > 0 && s[start-1].Date.After(cutoff) {
		start--
	}
	return s[start:]
}

// ForecastPoint is a fitted (historical) or forecast (future) usage value.
type ForecastPoint struct {
	Date          time.Time `json:"date"`
	PointEstimate float64   `json:"point_estimate"`
	LowerBound    float64   `json:"lower_bound"`
	UpperBound    float64   `json:"upper_bound"`
	IsForecast    bool      `json:"is_forecast"`
}

// DepletionEstimate translates stock and forecast usage into days remaining.
// DaysRemaining is +Inf when no usage is predicted; TrendRatio is nil when the
// recent average is zero.
type DepletionEstimate struct {
	CurrentStock        float64
	PredictedDailyUsage float64
	RecentDailyAverage  float64
	DaysRemaining       float64
	TrendRatio          *float64
}

type depletionJSON struct {
	CurrentStock        float64  `json:"current_stock"`
	PredictedDailyUsage float64  `json:"predicted_daily_usage"`
	RecentDailyAverage  float64  `json:"recent_daily_average"`
	DaysRemaining       *float64 `json:"days_remaining"`
	TrendRatio          *float64 `json:"trend_ratio"`
}

// MarshalJSON writes an infinite DaysRemaining as null.
func (e DepletionEstimate) MarshalJSON() ([]byte, error) {
	out := depletionJSON{
		CurrentStock:        e.CurrentStock,
		PredictedDailyUsage: e.PredictedDailyUsage,
		RecentDailyAverage:  e.RecentDailyAverage,
		TrendRatio:          e.TrendRatio,
	}
	if !math.IsInf(e.DaysRemaining, 1) {
		days := e.DaysRemaining
		out.DaysRemaining = &days
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null days_remaining back as +Inf.
func (e *DepletionEstimate) UnmarshalJSON(data []byte) error {
	var in depletionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.CurrentStock = in.CurrentStock
	e.PredictedDailyUsage = in.PredictedDailyUsage
	e.RecentDailyAverage = in.RecentDailyAverage
	e.TrendRatio = in.TrendRatio
	e.DaysRemaining = math.Inf(1)
	if in.DaysRemaining != nil {
		e.DaysRemaining = *in.DaysRemaining
	}
	return nil
}

// UrgencyDecision is the categorized recommendation.
type UrgencyDecision struct {
	Level   UrgencyLevel `json:"urgency,omitempty"`
	Message string       `json:"recommendation"`
}

// InventoryItem represents an ingredient row in the inventory table
type InventoryItem struct {
	IngredientID   int64   `json:"ingredient_id" db:"ingredient_id"`
	IngredientName string  `json:"ingredient_name" db:"ingredient_name"`
	Unit           string  `json:"unit" db:"unit"`
	TotalStock     float64 `json:"total_stock" db:"total_stock"`
	SafeFactor     float64 `json:"safe_factor" db:"safe_factor"`
}

// StockHealth is the safety-threshold classification of an ingredient.
type StockHealth struct {
	CurrentStock  float64     `json:"current_stock"`
	SafeThreshold float64     `json:"safe_threshold"`
	StockPercent  float64     `json:"stock_percentage"`
	Status        StockStatus `json:"stock_status"`
}

// UsageStats describes a daily series.
type UsageStats struct {
	TotalUsage          float64 `json:"total_usage"`
	Mean                float64 `json:"mean"`
	Median              float64 `json:"median"`
	Max                 float64 `json:"max_daily_usage"`
	MaxUsageDate        string  `json:"max_usage_date"`
	StdDev              float64 `json:"std"`
	CoefficientVar      float64 `json:"cv"`
	Skewness            float64 `json:"skewness"`
	Kurtosis            float64 `json:"kurtosis"`
	TrendSlope          float64 `json:"trend_slope"`
	SeasonalityStrength float64 `json:"seasonality_strength"`
	Autocorrelation     float64 `json:"autocorrelation"`
	AnomalyCount        int     `json:"anomalies_count"`
	DaysWithUsage       int     `json:"days_with_usage"`
	FirstUsageDate      string  `json:"first_usage_date"`
	LastUsageDate       string  `json:"last_usage_date"`
	RecentAverage       float64 `json:"recent_average"`
	Trend               string  `json:"trend"`
}

// RestockAnalysis is the full result of one restock analysis request.
type RestockAnalysis struct {
	IngredientID   int64             `json:"ingredient_id"`
	Horizon        int               `json:"horizon"`
	Depletion      DepletionEstimate `json:"depletion"`
	Decision       UrgencyDecision   `json:"decision"`
	Forecast       []ForecastPoint   `json:"forecast"`
	Forecaster     string            `json:"forecaster"`
	Fallback       bool              `json:"fallback"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	SkippedRecords int               `json:"skipped_records"`
	HistoryDays    int               `json:"history_days"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// HorizonForecast returns the future points only.
func (a *RestockAnalysis) HorizonForecast() []ForecastPoint {
	out := make([]ForecastPoint, 0, a.Horizon)
	for _, p := range a.Forecast {
		if p.IsForecast {
			out = append(out, p)
		}
	}
	return out
}

// InventoryReportItem is one ingredient row in the inventory report.
type InventoryReportItem struct {
	Item       InventoryItem    `json:"ingredient"`
	TotalUsage float64          `json:"total_usage"`
	Health     StockHealth      `json:"health"`
	Urgency    UrgencyLevel     `json:"urgency,omitempty"`
	Analysis   *RestockAnalysis `json:"analysis,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// UsageRank pairs an ingredient with its total usage.
type UsageRank struct {
	IngredientID   int64   `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	Unit           string  `json:"unit"`
	TotalUsage     float64 `json:"total_usage"`
}

// CriticalStockItem is an ingredient whose available stock fell under 20% of its total.
type CriticalStockItem struct {
	IngredientID   int64   `json:"ingredient_id"`
	IngredientName string  `json:"name"`
	Available      float64 `json:"available"`
	Unit           string  `json:"unit"`
	UsageRate      float64 `json:"usage_rate"`
}

// InventoryReport aggregates restock analysis across the inventory.
type InventoryReport struct {
	TotalIngredients  int                   `json:"total_ingredients"`
	TotalStockValue   float64               `json:"total_stock_value"`
	UnitsDistribution map[string]int        `json:"units_distribution"`
	TopUsed           []UsageRank           `json:"top_used_ingredients"`
	CriticalStock     []CriticalStockItem   `json:"critical_stock_items"`
	UrgencyCounts     map[UrgencyLevel]int  `json:"urgency_counts"`
	Items             []InventoryReportItem `json:"items"`
	GeneratedAt       time.Time             `json:"timestamp"`
}
