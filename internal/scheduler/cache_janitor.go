package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/noor/internal/catalog"
	"github.com/MrSnakeDoc/noor/internal/logger"
)

const (
	// DefaultCacheTTL is how long a remote-fetched surah is kept
	DefaultCacheTTL = 30 * 24 * time.Hour // 30 days
)

// Evicter drops a surah from the catalog and its persistent cache.
type Evicter interface {
	Evict(ctx context.Context, n int) error
}

// CacheJanitor handles cleanup of stale remote-fetched surahs
type CacheJanitor struct {
	catalog  *catalog.Memory
	evicter  Evicter
	logger   logger.Logger
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewCacheJanitor creates a new cache janitor
func NewCacheJanitor(
	cat *catalog.Memory,
	evicter Evicter,
	log logger.Logger,
	interval time.Duration,
	ttl time.Duration,
) *CacheJanitor {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	return &CacheJanitor{
		catalog:  cat,
		evicter:  evicter,
		logger:   log,
		interval: interval,
		ttl:      ttl,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup
func (cj *CacheJanitor) Start(ctx context.Context) error {
	// Run immediately on start
	if n := cj.Collect(ctx); n > 0 {
		cj.logger.Info("initial cache cleanup", logger.Int("evicted", n))
	}

	ticker := time.NewTicker(cj.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cj.Collect(ctx)
			case <-cj.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the janitor
func (cj *CacheJanitor) Stop() {
	close(cj.stopCh)
}

// Collect evicts remote surahs fetched longer than the TTL ago and returns
// how many were evicted. Manifest surahs are never touched.
func (cj *CacheJanitor) Collect(ctx context.Context) int {
	now := cj.now()
	stale := cj.catalog.RemoteFetchedBefore(now.Add(-cj.ttl))

	evicted := 0
	for _, s := range stale {
		if err := cj.evicter.Evict(ctx, s.Number); err != nil {
			// the cached copy comes back on the next Warm or Resolve and is evicted again then
			cj.logger.Warn("failed to evict cached surah",
				logger.Int("surah", s.Number),
				logger.Error(err))
		}

		cj.logger.Info("evicted stale surah",
			logger.Int("surah", s.Number),
			logger.String("age", now.Sub(s.FetchedAt).Round(time.Minute).String()))
		evicted++
	}

	if evicted == 0 {
		cj.logger.Debug("no cached surahs to evict")
	}
	return evicted
}
