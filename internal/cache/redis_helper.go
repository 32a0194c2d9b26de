package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	redisConnectTimeout = 5 * time.Second
	// redisOpTimeout bounds every cache read and write; a slow shared tier
	// must not hold up an analysis.
	redisOpTimeout  = 500 * time.Millisecond
	unlinkBatchSize = 500
)

// connectRedis opens a client and verifies it with PING.
func connectRedis(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", opts.Addr, err)
	}

	return client, nil
}

// redisOptions prefers REDIS_URL and falls back to host and port.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		host, port := cfg.RedisHost, cfg.RedisPort
		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	opts.DialTimeout = redisConnectTimeout
	opts.ReadTimeout = redisOpTimeout
	opts.WriteTimeout = redisOpTimeout
	return opts, nil
}

// unlinkPrefix removes every key under prefix, batching UNLINK calls as the
// SCAN iterator yields keys.
func unlinkPrefix(ctx context.Context, client *redis.Client, prefix string) (int, error) {
	var (
		removed int
		batch   = make([]string, 0, unlinkBatchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
		removed += len(batch)
		batch = batch[:0]
		return nil
	}

	iter := client.Scan(ctx, 0, prefix+"*", unlinkBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == unlinkBatchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan failed: %w", err)
	}
	return removed, flush()
}
