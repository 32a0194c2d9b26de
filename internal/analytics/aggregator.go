// internal/analytics/aggregator.go
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

// usageDateLayouts are tried in order when parsing ledger dates.
var usageDateLayouts = []string{
	domain.DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// AggregationReport counts the records seen and dropped by AggregateDaily.
type AggregationReport struct {
	Total     int
	Valid     int
	Skipped   int
	Malformed []*domain.MalformedRecordError
}

// ParseUsageDate parses a ledger date and truncates it to its calendar date in UTC.
func ParseUsageDate(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range usageDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return truncateToDate(t), true
		}
	}
	return time.Time{}, false
}

// truncateToDate converts offset timestamps to UTC before dropping the clock.
func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseQuantity parses a non-negative decimal quantity.
func ParseQuantity(raw string) (decimal.Decimal, string, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, "empty", false
	}
	qty, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, "not a number", false
	}
	if qty.IsNegative() {
		return decimal.Zero, "negative", false
	}
	return qty, "", true
}

// ValidateRecord turns a raw ledger row into a usage event.
func ValidateRecord(index int, rec domain.UsageRecord) (domain.UsageEvent, decimal.Decimal, *domain.MalformedRecordError) {
	date, ok := ParseUsageDate(rec.Date)
	if !ok {
		return domain.UsageEvent{}, decimal.Zero, &domain.MalformedRecordError{
			Index: index, Field: "usage_date", Value: rec.Date, Reason: "unparseable date",
		}
	}

	qty, reason, ok := ParseQuantity(rec.Quantity)
	if !ok {
		return domain.UsageEvent{}, decimal.Zero, &domain.MalformedRecordError{
			Index: index, Field: "quantity_used", Value: rec.Quantity, Reason: reason,
		}
	}

	return domain.UsageEvent{
		IngredientID: rec.IngredientID,
		Date:         date,
		Quantity:     qty.InexactFloat64(),
	}, qty, nil
}

// ValidRecords keeps the records that ValidateRecord accepts, rewritten with
// canonical date and quantity text, and returns the rejected ones.
func ValidRecords(records []domain.UsageRecord) ([]domain.UsageRecord, []*domain.MalformedRecordError) {
	valid := make([]domain.UsageRecord, 0, len(records))
	var malformed []*domain.MalformedRecordError
	for i, rec := range records {
		event, qty, bad := ValidateRecord(i, rec)
		if bad != nil {
			malformed = append(malformed, bad)
			continue
		}
		valid = append(valid, domain.UsageRecord{
			IngredientID: event.IngredientID,
			Quantity:     qty.String(),
			Date:         event.Date.Format(domain.DateLayout),
		})
	}
	return valid, malformed
}

// AggregateDaily validates the records of one ingredient and sums them per
// calendar date. Malformed records are skipped and reported, never zeroed.
// An empty result is an InsufficientDataError.
func AggregateDaily(ingredientID int64, records []domain.UsageRecord) (domain.DailySeries, AggregationReport, error) {
	report := AggregationReport{Total: len(records)}
	totals := make(map[time.Time]decimal.Decimal)

	for i, rec := range records {
		event, qty, bad := ValidateRecord(i, rec)
		if bad != nil {
			report.Skipped++
			report.Malformed = append(report.Malformed, bad)
			continue
		}
		report.Valid++
		totals[event.Date] = totals[event.Date].Add(qty)
	}

	if len(totals) == 0 {
		return nil, report, &domain.InsufficientDataError{IngredientID: ingredientID, Skipped: report.Skipped}
	}

	series := make(domain.DailySeries, 0, len(totals))
	for date, total := range totals {
		series = append(series, domain.DailyUsage{Date: date, Total: total.InexactFloat64()})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	return series, report, nil
}
