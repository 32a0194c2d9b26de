package app

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/config"
	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/forecast"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline/restock"
	"github.com/andresuchdata/restock/backend-go/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdvisorDefaults(t *testing.T) {
	advisor := NewAdvisor(config.AdvisorConfig{CriticalDays: 2})

	assert.Equal(t, restock.Thresholds{CriticalDays: 2, LowDays: 7, TrendRatio: 1.2}, advisor.Thresholds())
}

func TestNewMemoDisabled(t *testing.T) {
	memo, shared := NewMemo(context.Background(), config.CacheConfig{Enabled: false})

	assert.Nil(t, memo)
	require.NotNil(t, shared)
}

func TestNewMemoInProcess(t *testing.T) {
	memo, _ := NewMemo(context.Background(), config.CacheConfig{Enabled: true, WindowSeconds: 60})

	require.NotNil(t, memo)
	assert.Equal(t, time.Minute, memo.Window())
}

func TestNewOfflineAnalyzes(t *testing.T) {
	cfg := &config.Config{Forecast: config.ForecastConfig{HorizonDays: 4, MinPoints: forecast.DefaultMinPoints}}
	src := repository.UsageSourceFunc(func(_ context.Context, id int64) ([]domain.UsageRecord, error) {
		return []domain.UsageRecord{
			{IngredientID: id, Quantity: "2", Date: "2025-01-01"},
			{IngredientID: id, Quantity: "2", Date: "2025-01-02"},
		}, nil
	})

	a := NewOffline(cfg, src)
	defer a.Close()

	stock := 10.0
	analysis, err := a.Restock.Analyze(context.Background(), 1, &stock, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, analysis.Horizon)
	assert.True(t, analysis.Fallback)
	assert.InDelta(t, 5.0, analysis.Depletion.DaysRemaining, 1e-6)

	a.InvalidateCaches(context.Background())
}
