package restock

import "github.com/andresuchdata/restock/backend-go/internal/domain"

const (
	MessageCritical   = "critical, restock immediately."
	MessageLowStock   = "low stock, schedule restock this week."
	MessageIncreasing = "usage increasing, consider raising stock."
	MessageAdequate   = "stock levels adequate for current usage."
)

// Thresholds configures the advisor rules.
type Thresholds struct {
	CriticalDays float64
	LowDays      float64
	TrendRatio   float64
}

// DefaultThresholds are three days, a week and a 20% rise in usage.
var DefaultThresholds = Thresholds{CriticalDays: 3, LowDays: 7, TrendRatio: 1.2}

// Advisor maps a depletion estimate to an urgency decision.
type Advisor struct {
	thresholds Thresholds
}

// NewAdvisor creates an advisor. Zero fields fall back to DefaultThresholds.
func NewAdvisor(t Thresholds) *Advisor {
	if t.CriticalDays <= 0 {
		t.CriticalDays = DefaultThresholds.CriticalDays
	}
	if t.LowDays <= 0 {
		t.LowDays = DefaultThresholds.LowDays
	}
	if t.TrendRatio <= 0 {
		t.TrendRatio = DefaultThresholds.TrendRatio
	}
	return &Advisor{thresholds: t}
}

// Thresholds returns the effective thresholds.
func (a *Advisor) Thresholds() Thresholds {
	return a.thresholds
}

// Advise applies the rules in order and returns the first match. Imminent
// depletion outranks a rising trend.
func (a *Advisor) Advise(estimate domain.DepletionEstimate) domain.UrgencyDecision {
	switch {
	case estimate.DaysRemaining < a.thresholds.CriticalDays:
		return domain.UrgencyDecision{Level: domain.UrgencyHigh, Message: MessageCritical}
	case estimate.DaysRemaining < a.thresholds.LowDays:
		return domain.UrgencyDecision{Level: domain.UrgencyMedium, Message: MessageLowStock}
	case estimate.TrendRatio != nil && *estimate.TrendRatio > a.thresholds.TrendRatio:
		return domain.UrgencyDecision{Level: domain.UrgencyMedium, Message: MessageIncreasing}
	default:
		return domain.UrgencyDecision{Level: domain.UrgencyLow, Message: MessageAdequate}
	}
}
