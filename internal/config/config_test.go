package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int64(10), cfg.Database.MaxConcurrency)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Cache.RedisEnabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.Window())
	assert.Equal(t, 3, cfg.Forecast.HorizonDays)
	assert.Equal(t, 14, cfg.Forecast.MinPoints)
	assert.Equal(t, 10*time.Second, cfg.Forecast.Timeout())
	assert.Equal(t, 3.0, cfg.Advisor.CriticalDays)
	assert.Equal(t, 7.0, cfg.Advisor.LowDays)
	assert.Equal(t, 1.2, cfg.Advisor.TrendRatio)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 4, cfg.Report.Workers)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CACHE_WINDOW_SECONDS", 60)
	v.Set("FORECAST_TIMEOUT_MS", 250)
	v.Set("DB_DRIVER", "pgx")

	cfg := fromViper(v)

	assert.Equal(t, time.Minute, cfg.Cache.Window())
	assert.Equal(t, 250*time.Millisecond, cfg.Forecast.Timeout())
	assert.Equal(t, "pgx", cfg.Database.Driver)
}

func TestDurationFallbacks(t *testing.T) {
	assert.Equal(t, 5*time.Minute, CacheConfig{}.Window())
	assert.Equal(t, 10*time.Second, ForecastConfig{}.Timeout())
}
