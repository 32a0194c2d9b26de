package domain

import "strings"

// UrgencyLevel classifies how soon an ingredient must be restocked.
type UrgencyLevel string

const (
	UrgencyHigh   UrgencyLevel = "high"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyLow    UrgencyLevel = "low"
	// UrgencyNoData marks report rows without usage history.
	UrgencyNoData UrgencyLevel = "no_data"
)

var urgencyRanks = map[UrgencyLevel]int{
	UrgencyHigh:   0,
	UrgencyMedium: 1,
	UrgencyLow:    2,
	UrgencyNoData: 3,
}

// Rank orders urgency levels, most urgent first.
func (l UrgencyLevel) Rank() int {
	if rank, ok := urgencyRanks[l]; ok {
		return rank
	}

	return len(urgencyRanks)
}

// ParseUrgency returns the level for a given label (case-insensitive).
func ParseUrgency(label string) (UrgencyLevel, bool) {
	level := UrgencyLevel(strings.ToLower(strings.TrimSpace(label)))
	_, ok := urgencyRanks[level]

	return level, ok
}

// StockStatus is the safety-threshold state of an ingredient.
type StockStatus string

const (
	StockCritical StockStatus = "critical"
	StockWarning  StockStatus = "warning"
	StockGood     StockStatus = "good"
)
