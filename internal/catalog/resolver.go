package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/noor/internal/domain"
	"github.com/MrSnakeDoc/noor/internal/logger"
)

// CacheKeyPrefix prefixes the storage key of each cached remote surah.
const CacheKeyPrefix = "surah:"

var (
	ErrInvalidSurah = errors.New("surah number must be between 1 and 114")
	ErrNotFound     = errors.New("surah not available")
	ErrUpstream     = errors.New("verse source failed")
)

// Fetcher loads a surah from a remote source.
type Fetcher interface {
	FetchSurah(ctx context.Context, number int) (*domain.Surah, error)
}

// Cache persists remote surahs between restarts.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Resolver finds the verses of a surah: catalog first, then the persistent
// cache, then the remote source. Remote results are kept in both.
type Resolver struct {
	catalog *Memory
	cache   Cache   // optional
	remote  Fetcher // optional
	logger  logger.Logger

	// one fetch per surah at a time
	inflight singleflight.Group
}

// NewResolver creates a resolver. cache and remote may be nil.
func NewResolver(catalog *Memory, cache Cache, remote Fetcher, log logger.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		cache:   cache,
		remote:  remote,
		logger:  log,
	}
}

// CacheKey returns the storage key of a cached surah.
func CacheKey(number int) string {
	return CacheKeyPrefix + strconv.Itoa(number)
}

// Resolve returns surah n.
func (r *Resolver) Resolve(ctx context.Context, n int) (*domain.Surah, error) {
	if !domain.ValidSurah(n) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSurah, n)
	}

	if s, ok := r.catalog.Get(n); ok {
		return s, nil
	}

	if s, ok := r.fromCache(ctx, n); ok {
		r.catalog.Put(s)
		return s, nil
	}

	if r.remote == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, n)
	}
	return r.fetch(ctx, n)
}

// fetch shares one remote call between concurrent requests for the same
// surah. The call is detached from the first caller's context so a caller
// that gives up does not fail the others; the http client bounds it.
func (r *Resolver) fetch(ctx context.Context, n int) (*domain.Surah, error) {
	shared := context.WithoutCancel(ctx)
	ch := r.inflight.DoChan(strconv.Itoa(n), func() (any, error) {
		return r.fetchRemote(shared, n)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Surah), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Resolver) fetchRemote(ctx context.Context, n int) (*domain.Surah, error) {
	s, err := r.remote.FetchSurah(ctx, n)
	if err != nil {
		r.logger.Warn("failed to fetch surah",
			logger.Int("surah", n),
			logger.Error(err))
		return nil, fmt.Errorf("%w: surah %d: %w", ErrUpstream, n, err)
	}

	r.catalog.Put(s)
	r.toCache(ctx, s)

	r.logger.Info("surah fetched",
		logger.Int("surah", n),
		logger.Int("verses", len(s.Verses)),
		logger.String("source", s.Source))
	return s, nil
}

func (r *Resolver) fromCache(ctx context.Context, n int) (*domain.Surah, bool) {
	if r.cache == nil {
		return nil, false
	}

	raw, ok, err := r.cache.Get(ctx, CacheKey(n))
	if err != nil {
		r.logger.Warn("surah cache read failed", logger.Int("surah", n), logger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var s domain.Surah
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Number != n {
		r.logger.Warn("dropping unreadable cached surah", logger.Int("surah", n))
		_ = r.cache.Delete(ctx, CacheKey(n))
		return nil, false
	}
	return &s, true
}

func (r *Resolver) toCache(ctx context.Context, s *domain.Surah) {
	if r.cache == nil {
		return
	}

	data, err := json.Marshal(s)
	if err != nil {
		r.logger.Warn("failed to encode surah for cache", logger.Int("surah", s.Number), logger.Error(err))
		return
	}
	if err := r.cache.Set(ctx, CacheKey(s.Number), string(data)); err != nil {
		r.logger.Warn("surah cache write failed", logger.Int("surah", s.Number), logger.Error(err))
	}
}

// Evict drops a remote surah from the catalog and the cache.
func (r *Resolver) Evict(ctx context.Context, n int) error {
	r.catalog.Delete(n)
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, CacheKey(n))
}

// Warm loads every cached surah into the catalog. Used on startup.
func (r *Resolver) Warm(ctx context.Context) (int, error) {
	if r.cache == nil {
		return 0, nil
	}

	keys, err := r.cache.Keys(ctx, CacheKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list cached surahs: %w", err)
	}

	loaded := 0
	for _, key := range keys {
		n, err := strconv.Atoi(strings.TrimPrefix(key, CacheKeyPrefix))
		if err != nil || !domain.ValidSurah(n) {
			continue
		}
		if s, ok := r.fromCache(ctx, n); ok {
			r.catalog.Put(s)
			loaded++
		}
	}
	return loaded, nil
}
