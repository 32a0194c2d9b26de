package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/config"
	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const analysisKeyPrefix = "restock:analysis"

// Key identifies one memoized restock analysis.
type Key struct {
	IngredientID int64
	CurrentStock float64
	Horizon      int
	Bucket       time.Time
}

// NewKey buckets now to the cache window.
func NewKey(ingredientID int64, currentStock float64, horizon int, now time.Time, window time.Duration) Key {
	return Key{
		IngredientID: ingredientID,
		CurrentStock: currentStock,
		Horizon:      horizon,
		Bucket:       now.UTC().Truncate(window),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%s:%d:%d", k.IngredientID, strconv.FormatFloat(k.CurrentStock, 'f', -1, 64), k.Horizon, k.Bucket.Unix())
}

// AnalysisCache is a shared tier behind the in-process memo.
type AnalysisCache interface {
	Get(ctx context.Context, key Key) (*domain.RestockAnalysis, bool, error)
	Set(ctx context.Context, key Key, analysis *domain.RestockAnalysis) error
	InvalidateAll(ctx context.Context) error
}

type redisAnalysisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopAnalysisCache struct{}

// NewAnalysisCache connects to redis when it is enabled, otherwise it returns
// a cache that never hits.
// Entries live for one cache window.
func NewAnalysisCache(ctx context.Context, cfg config.CacheConfig) (AnalysisCache, error) {
	if !cfg.Enabled || !cfg.RedisEnabled {
		return &noopAnalysisCache{}, nil
	}

	client, err := connectRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisAnalysisCache(client, cfg.Window()), nil
}

// NewRedisAnalysisCache wraps an existing client.
func NewRedisAnalysisCache(client *redis.Client, ttl time.Duration) AnalysisCache {
	return &redisAnalysisCache{client: client, ttl: ttl}
}

func NewNoopAnalysisCache() AnalysisCache {
	return &noopAnalysisCache{}
}

func (c *redisAnalysisCache) Get(ctx context.Context, key Key) (*domain.RestockAnalysis, bool, error) {
	payload, err := c.client.Get(ctx, buildAnalysisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var analysis domain.RestockAnalysis
	if err := json.Unmarshal(payload, &analysis); err != nil {
		return nil, false, fmt.Errorf("decode restock analysis cache: %w", err)
	}

	return &analysis, true, nil
}

func (c *redisAnalysisCache) Set(ctx context.Context, key Key, analysis *domain.RestockAnalysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode restock analysis cache: %w", err)
	}

	if err := c.client.Set(ctx, buildAnalysisKey(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisAnalysisCache) InvalidateAll(ctx context.Context) error {
	removed, err := unlinkPrefix(ctx, c.client, analysisKeyPrefix+":")
	if err != nil {
		return err
	}
	log.Debug().Int("keys", removed).Msg("restock analysis cache invalidated")
	return nil
}

func (n *noopAnalysisCache) Get(ctx context.Context, key Key) (*domain.RestockAnalysis, bool, error) {
	return nil, false, nil
}

func (n *noopAnalysisCache) Set(ctx context.Context, key Key, analysis *domain.RestockAnalysis) error {
	return nil
}

func (n *noopAnalysisCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildAnalysisKey(key Key) string {
	sum := sha1.Sum([]byte(key.String()))
	return fmt.Sprintf("%s:%d:%s", analysisKeyPrefix, key.IngredientID, hex.EncodeToString(sum[:]))
}
