// internal/analytics/stats.go
package analytics

import (
	"math"
	"sort"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const (
	// WeeklyPeriod is the seasonal period of daily restaurant usage.
	WeeklyPeriod = 7
	// RecentWindowDays is the window used for recent averages.
	RecentWindowDays = 7
	anomalyZScore    = 3.0
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev returns the sample standard deviation (n-1), or 0 below two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Median returns the middle value of a copy of values. Even-length inputs
// average the two middle values.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}

// Skewness is the biased sample skewness m3 / m2^1.5.
func Skewness(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	m2 := stat.Moment(2, values, nil)
	if m2 == 0 {
		return 0
	}
	return stat.Moment(3, values, nil) / math.Pow(m2, 1.5)
}

// Kurtosis is the biased excess kurtosis m4 / m2^2 - 3.
func Kurtosis(values []float64) float64 {
	if len(values) < 4 {
		return 0
	}
	m2 := stat.Moment(2, values, nil)
	if m2 == 0 {
		return 0
	}
	return stat.Moment(4, values, nil)/(m2*m2) - 3
}

// TrendSlope is the least-squares slope of values against their index.
func TrendSlope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, beta := stat.LinearRegression(positions(len(values)), values, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

func positions(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

// Autocorrelation is the lag-1 Pearson correlation.
func Autocorrelation(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	a, b := values[:len(values)-1], values[1:]
	if stat.StdDev(a, nil) == 0 || stat.StdDev(b, nil) == 0 {
		return 0
	}
	return stat.Correlation(a, b, nil)
}

// AnomalyCount counts values whose population z-score exceeds 3.
func AnomalyCount(values []float64) int {
	if len(values) == 0 {
		return 0
	}
	m, std := stat.PopMeanStdDev(values, nil)
	if std == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if math.Abs(stat.StdScore(v, m, std)) > anomalyZScore {
			count++
		}
	}
	return count
}

// SeasonalComponent performs a classical additive decomposition and returns
// the seasonal component aligned with values. It returns nil when fewer than
// two full periods are available.
func SeasonalComponent(values []float64, period int) []float64 {
	n := len(values)
	if period < 2 || n < 2*period {
		return nil
	}

	trend := movingAverage(values, period)
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, t := range trend {
		if math.IsNaN(t) {
			continue
		}
		sums[i%period] += values[i] - t
		counts[i%period]++
	}

	indices := make([]float64, period)
	for p := range indices {
		if counts[p] > 0 {
			indices[p] = sums[p] / float64(counts[p])
		}
	}
	shift := Mean(indices)
	for p := range indices {
		indices[p] -= shift
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = indices[i%period]
	}
	return out
}

// movingAverage is the centered moving average; edges are NaN.
func movingAverage(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	half := period / 2
	for i := half; i < n-half; i++ {
		if period%2 == 1 {
			out[i] = Mean(values[i-half : i+half+1])
			continue
		}
		// 2xMA for even periods
		sum := 0.5*values[i-half] + 0.5*values[i+half]
		for j := i - half + 1; j < i+half; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// SeasonalityStrength is std(seasonal) / std(values) for the weekly period.
func SeasonalityStrength(values []float64) float64 {
	seasonal := SeasonalComponent(values, WeeklyPeriod)
	if seasonal == nil {
		return 0
	}
	std := StdDev(values)
	if std == 0 {
		return 0
	}
	return StdDev(seasonal) / std
}

// Describe computes the descriptive statistics of a daily series.
func Describe(series domain.DailySeries) domain.UsageStats {
	if len(series) == 0 {
		return domain.UsageStats{}
	}

	values := series.Values()
	stats := domain.UsageStats{
		Mean:                Mean(values),
		Median:              Median(values),
		StdDev:              StdDev(values),
		Skewness:            Skewness(values),
		Kurtosis:            Kurtosis(values),
		TrendSlope:          TrendSlope(values),
		SeasonalityStrength: SeasonalityStrength(values),
		Autocorrelation:     Autocorrelation(values),
		AnomalyCount:        AnomalyCount(values),
		DaysWithUsage:       len(series),
		FirstUsageDate:      series[0].Date.Format(domain.DateLayout),
		LastUsageDate:       series.Last().Date.Format(domain.DateLayout),
		RecentAverage:       Mean(series.Window(RecentWindowDays).Values()),
	}

	maxIdx := 0
	for i, d := range series {
		stats.TotalUsage += d.Total
		if d.Total > series[maxIdx].Total {
			maxIdx = i
		}
	}
	stats.Max = series[maxIdx].Total
	stats.MaxUsageDate = series[maxIdx].Date.Format(domain.DateLayout)

	if stats.Mean != 0 {
		stats.CoefficientVar = stats.StdDev / stats.Mean * 100
	}

	stats.Trend = "decreasing"
	if stats.RecentAverage > stats.Mean {
		stats.Trend = "increasing"
	}

	return stats
}
