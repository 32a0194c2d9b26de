// Package app assembles the restock pipeline from configuration.
package app

import (
	"context"
	"net/http"

	"github.com/andresuchdata/restock/backend-go/internal/cache"
	"github.com/andresuchdata/restock/backend-go/internal/config"
	"github.com/andresuchdata/restock/backend-go/internal/forecast"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline/restock"
	"github.com/andresuchdata/restock/backend-go/internal/repository"
	"github.com/andresuchdata/restock/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/restock/backend-go/internal/service"
	"github.com/andresuchdata/restock/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// App holds the wired components. Close releases the database pool.
type App struct {
	Config   *config.Config
	DB       *postgres.DB
	Shared   cache.AnalysisCache
	Memo     *cache.Memo
	Writer   repository.UsageWriter
	Analyzer *pipeline.Analyzer
	Restock  *service.RestockService
	Report   *service.ReportService
}

// NewEngine builds the forecast engine: the remote service first when one is
// configured, then the local seasonal model, then the flat fallback.
func NewEngine(cfg config.ForecastConfig, client *http.Client) *forecast.Engine {
	seasonal := forecast.NewSeasonalForecaster(cfg.MinPoints)
	if cfg.RemoteURL == "" {
		return forecast.NewEngine(seasonal, cfg.Timeout())
	}
	remote := forecast.NewRemoteForecaster(cfg.RemoteURL, client)
	return forecast.NewEngine(forecast.Chain{remote, seasonal}, cfg.Timeout())
}

// NewAdvisor builds the advisor from the configured thresholds.
func NewAdvisor(cfg config.AdvisorConfig) *restock.Advisor {
	return restock.NewAdvisor(restock.Thresholds{
		CriticalDays: cfg.CriticalDays,
		LowDays:      cfg.LowDays,
		TrendRatio:   cfg.TrendRatio,
	})
}

// NewMemo returns nil when caching is disabled. Redis failures degrade to
// the in-process tier only.
func NewMemo(ctx context.Context, cfg config.CacheConfig) (*cache.Memo, cache.AnalysisCache) {
	if !cfg.Enabled {
		return nil, cache.NewNoopAnalysisCache()
	}

	shared, err := cache.NewAnalysisCache(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis cache unavailable, using in-process cache only")
		shared = cache.NewNoopAnalysisCache()
	}
	return cache.NewMemo(cfg.Window(), cache.WithShared(shared)), shared
}

// NewAnalyzer wires the pipeline over src.
func NewAnalyzer(cfg *config.Config, src repository.UsageSource, memo *cache.Memo) *pipeline.Analyzer {
	opts := []pipeline.Option{pipeline.WithConfig(pipeline.Config{Horizon: cfg.Forecast.HorizonDays})}
	if memo != nil {
		opts = append(opts, pipeline.WithMemo(memo))
	}
	return pipeline.NewAnalyzer(src, NewEngine(cfg.Forecast, nil), NewAdvisor(cfg.Advisor), opts...)
}

// New connects to Postgres and wires every service. Object storage is
// optional; when it cannot be opened archiving is disabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	usage := postgres.NewUsageRepository(db)
	inventory := postgres.NewInventoryRepository(db)
	memo, shared := NewMemo(ctx, cfg.Cache)
	analyzer := NewAnalyzer(cfg, usage, memo)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.Storage.Backend).Msg("report storage unavailable, archiving disabled")
		store = nil
	}

	return &App{
		Config:   cfg,
		DB:       db,
		Shared:   shared,
		Memo:     memo,
		Writer:   usage,
		Analyzer: analyzer,
		Restock:  service.NewRestockService(analyzer, inventory),
		Report:   service.NewReportService(inventory, pipeline.NewBatchRunner(analyzer, cfg.Report.Workers), store),
	}, nil
}

// NewOffline wires the analyzer over src without a database. Only per
// ingredient analysis with an explicit stock is available.
func NewOffline(cfg *config.Config, src repository.UsageSource) *App {
	analyzer := NewAnalyzer(cfg, src, nil)
	return &App{
		Config:   cfg,
		Shared:   cache.NewNoopAnalysisCache(),
		Analyzer: analyzer,
		Restock:  service.NewRestockService(analyzer, nil),
	}
}

// InvalidateCaches drops every cached analysis, e.g. after new usage is written.
func (a *App) InvalidateCaches(ctx context.Context) {
	if a.Memo != nil {
		a.Memo.Purge()
	}
	if err := a.Shared.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("cache invalidation failed")
	}
}

func (a *App) Close() {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database failed")
		}
	}
}
