package cache

import (
	"context"
	"sync"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the analysis for a key on a miss.
type ComputeFunc func(ctx context.Context) (*domain.RestockAnalysis, error)

type memoEntry struct {
	analysis  *domain.RestockAnalysis
	expiresAt time.Time
}

// Memo is the in-process analysis cache. Entries live for one window,
// concurrent misses on a key share a single computation, and failures are
// never stored.
type Memo struct {
	window time.Duration
	shared AnalysisCache
	now    func() time.Time

	mu      sync.Mutex
	entries map[Key]memoEntry
	group   singleflight.Group
}

// MemoOption configures a Memo.
type MemoOption func(*Memo)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoOption {
	return func(m *Memo) { m.now = now }
}

// WithShared adds a second cache tier consulted before computing.
func WithShared(shared AnalysisCache) MemoOption {
	return func(m *Memo) {
		if shared != nil {
			m.shared = shared
		}
	}
}

func NewMemo(window time.Duration, opts ...MemoOption) *Memo {
	if window <= 0 {
		window = 5 * time.Minute
	}
	m := &Memo{
		window:  window,
		shared:  &noopAnalysisCache{},
		now:     time.Now,
		entries: make(map[Key]memoEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Window is the bucket width and entry lifetime.
func (m *Memo) Window() time.Duration {
	return m.window
}

// Key builds the key for a request made now.
func (m *Memo) Key(ingredientID int64, currentStock float64, horizon int) Key {
	return NewKey(ingredientID, currentStock, horizon, m.now(), m.window)
}

// Do returns the cached analysis for key or computes it exactly once.
func (m *Memo) Do(ctx context.Context, key Key, compute ComputeFunc) (*domain.RestockAnalysis, error) {
	if analysis, ok := m.lookup(key); ok {
		metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
		return analysis, nil
	}
	metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()

	v, err, _ := m.group.Do(key.String(), func() (interface{}, error) {
		if analysis, ok := m.lookup(key); ok {
			return analysis, nil
		}

		analysis, hit, err := m.shared.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Int64("ingredient_id", key.IngredientID).Msg("failed to read restock analysis cache")
		}
		if hit {
			metrics.CacheLookups.WithLabelValues("shared", "hit").Inc()
			m.store(key, analysis)
			return analysis, nil
		}

		analysis, err = compute(ctx)
		if err != nil {
			return nil, err
		}

		m.store(key, analysis)
		if err := m.shared.Set(ctx, key, analysis); err != nil {
			log.Warn().Err(err).Int64("ingredient_id", key.IngredientID).Msg("failed to write restock analysis cache")
		}
		return analysis, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.RestockAnalysis), nil
}

// Len counts live entries.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpiredLocked(m.now())
	return len(m.entries)
}

// Purge drops every in-process entry.
func (m *Memo) Purge() {
	m.mu.Lock()
	m.entries = make(map[Key]memoEntry)
	m.mu.Unlock()
}

func (m *Memo) lookup(key Key) (*domain.RestockAnalysis, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return entry.analysis, true
}

func (m *Memo) store(key Key, analysis *domain.RestockAnalysis) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictExpiredLocked(now)
	m.entries[key] = memoEntry{analysis: analysis, expiresAt: now.Add(m.window)}
}

func (m *Memo) evictExpiredLocked(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
