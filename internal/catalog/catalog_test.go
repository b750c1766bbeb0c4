package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/noor/internal/domain"
	"github.com/MrSnakeDoc/noor/internal/logger"
	"github.com/MrSnakeDoc/noor/internal/storage"
)

func surah(n int, source string, fetched time.Time) *domain.Surah {
	return &domain.Surah{
		Number:    n,
		Verses:    []domain.Verse{{Index: 1, Text: "x", AudioURL: "https://cdn.test/a.mp3"}},
		Source:    source,
		FetchedAt: fetched,
	}
}

type fakeFetcher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakeFetcher) FetchSurah(ctx context.Context, n int) (*domain.Surah, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return surah(n, domain.SourceAlQuran, time.Now()), nil
}

func TestMemory_ManifestWinsOverRemote(t *testing.T) {
	m := NewMemory()

	m.Put(surah(1, domain.SourceAlQuran, time.Now()))
	m.ReplaceManifest([]*domain.Surah{surah(1, domain.SourceManifest, time.Now())})

	got, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, domain.SourceManifest, got.Source)
	assert.Len(t, m.All(), 1)

	m.ReplaceManifest(nil)
	got, ok = m.Get(1)
	require.True(t, ok)
	assert.Equal(t, domain.SourceAlQuran, got.Source)
}

func TestMemory_AllSortedAndStats(t *testing.T) {
	m := NewMemory()
	m.Put(surah(36, domain.SourceAlQuran, time.Now()))
	m.ReplaceManifest([]*domain.Surah{surah(112, domain.SourceManifest, time.Now()), surah(1, domain.SourceManifest, time.Now())})

	all := m.All()
	require.Len(t, all, 3)
	assert.Equal(t, []int{1, 36, 112}, []int{all[0].Number, all[1].Number, all[2].Number})

	st := m.Stats()
	assert.Equal(t, 2, st.Manifest)
	assert.Equal(t, 1, st.Remote)
	assert.False(t, st.LastReload.IsZero())
}

func TestMemory_RemoteFetchedBefore(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.Put(surah(2, domain.SourceAlQuran, now.Add(-48*time.Hour)))
	m.Put(surah(3, domain.SourceAlQuran, now))
	m.ReplaceManifest([]*domain.Surah{surah(4, domain.SourceManifest, now.Add(-100*time.Hour))})

	old := m.RemoteFetchedBefore(now.Add(-24 * time.Hour))
	require.Len(t, old, 1)
	assert.Equal(t, 2, old[0].Number)
}

func TestResolver_InvalidNumber(t *testing.T) {
	r := NewResolver(NewMemory(), nil, &fakeFetcher{}, logger.NewNop())

	for _, n := range []int{0, -1, 115} {
		_, err := r.Resolve(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidSurah)
	}
}

func TestResolver_CatalogThenRemote(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	cat := NewMemory()
	cat.ReplaceManifest([]*domain.Surah{surah(1, domain.SourceManifest, time.Now())})
	fetcher := &fakeFetcher{}
	r := NewResolver(cat, mem, fetcher, logger.NewNop())

	s, err := r.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceManifest, s.Source)
	assert.Equal(t, int32(0), fetcher.calls.Load())

	s, err = r.Resolve(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAlQuran, s.Source)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	// now served from the catalog
	_, err = r.Resolve(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	_, ok, err := mem.Get(ctx, CacheKey(2))
	require.NoError(t, err)
	assert.True(t, ok, "remote result is cached")
}

func TestResolver_UsesPersistentCache(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	first := NewResolver(NewMemory(), mem, &fakeFetcher{}, logger.NewNop())
	_, err := first.Resolve(ctx, 55)
	require.NoError(t, err)

	// new process: empty catalog, same storage, remote down
	down := &fakeFetcher{err: errors.New("offline")}
	second := NewResolver(NewMemory(), mem, down, logger.NewNop())
	s, err := second.Resolve(ctx, 55)
	require.NoError(t, err)
	assert.Equal(t, 55, s.Number)
	assert.Equal(t, int32(0), down.calls.Load())
}

func TestResolver_Errors(t *testing.T) {
	ctx := context.Background()

	r := NewResolver(NewMemory(), nil, nil, logger.NewNop())
	_, err := r.Resolve(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("502 bad gateway")
	r = NewResolver(NewMemory(), nil, &fakeFetcher{err: boom}, logger.NewNop())
	_, err = r.Resolve(ctx, 3)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, boom)
}

func TestResolver_CorruptCacheEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, mem.Set(ctx, CacheKey(7), "not json"))

	fetcher := &fakeFetcher{}
	r := NewResolver(NewMemory(), mem, fetcher, logger.NewNop())
	s, err := r.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Number)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestResolver_OneFetchPerSurah(t *testing.T) {
	fetcher := &fakeFetcher{delay: 50 * time.Millisecond}
	r := NewResolver(NewMemory(), nil, fetcher, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), 18)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestResolver_CallerGivingUpKeepsSharedFetch(t *testing.T) {
	fetcher := &fakeFetcher{delay: 50 * time.Millisecond}
	cat := NewMemory()
	r := NewResolver(cat, nil, fetcher, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := r.Resolve(ctx, 36)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	s, err := r.Resolve(context.Background(), 36)
	require.NoError(t, err)
	assert.Equal(t, 36, s.Number)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	_, ok := cat.Get(36)
	assert.True(t, ok)
}

func TestResolver_WarmAndEvict(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	seed := NewResolver(NewMemory(), mem, &fakeFetcher{}, logger.NewNop())
	for _, n := range []int{1, 2, 3} {
		_, err := seed.Resolve(ctx, n)
		require.NoError(t, err)
	}
	require.NoError(t, mem.Set(ctx, CacheKeyPrefix+"junk", "{}"))

	cat := NewMemory()
	r := NewResolver(cat, mem, nil, logger.NewNop())
	loaded, err := r.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded)
	assert.Equal(t, 3, cat.Stats().Remote)

	require.NoError(t, r.Evict(ctx, 2))
	_, ok := cat.Get(2)
	assert.False(t, ok)
	_, ok, err = mem.Get(ctx, CacheKey(2))
	require.NoError(t, err)
	assert.False(t, ok)
}
