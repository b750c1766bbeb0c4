package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/noor/internal/domain"
	"github.com/MrSnakeDoc/noor/internal/logger"
)

// fakeBackend hands out handles whose events the test fires by hand.
type fakeBackend struct {
	mu      sync.Mutex
	handles []*fakeHandle
	openErr error
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Open(ctx context.Context, url string, notify func(Event)) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openErr != nil {
		return nil, b.openErr
	}
	h := &fakeHandle{ctx: ctx, url: url, notify: notify}
	b.handles = append(b.handles, h)
	return h, nil
}

func (b *fakeBackend) opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

func (b *fakeBackend) last() *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handles[len(b.handles)-1]
}

func (b *fakeBackend) live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.handles {
		if !h.isClosed() {
			n++
		}
	}
	return n
}

type fakeHandle struct {
	mu      sync.Mutex
	ctx     context.Context
	url     string
	notify  func(Event)
	plays   int
	pauses  int
	closed  bool
	playErr error
}

func (h *fakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playErr != nil {
		return h.playErr
	}
	h.plays++
	return nil
}

func (h *fakeHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauses++
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) counts() (plays, pauses int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.plays, h.pauses
}

func (h *fakeHandle) ready()       { h.notify(Event{Kind: EventReady}) }
func (h *fakeHandle) ended()       { h.notify(Event{Kind: EventEnded}) }
func (h *fakeHandle) fail(e error) { h.notify(Event{Kind: EventError, Err: e}) }

// ─────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────

func verses(n int, silent ...int) []domain.Verse {
	noAudio := make(map[int]bool, len(silent))
	for _, i := range silent {
		noAudio[i] = true
	}
	out := make([]domain.Verse, 0, n)
	for i := 1; i <= n; i++ {
		v := domain.Verse{Index: i, Text: fmt.Sprintf("ayah %d", i)}
		if !noAudio[i] {
			v.AudioURL = fmt.Sprintf("https://cdn.test/1/%d.mp3", i)
		}
		out = append(out, v)
	}
	return out
}

func newTestController(t *testing.T, n int, silent ...int) (*Controller, *fakeBackend, <-chan Signal) {
	t.Helper()

	backend := &fakeBackend{}
	c := NewController(backend, logger.NewNop())
	t.Cleanup(func() { _ = c.Close() })

	ticket, err := c.Open(1)
	require.NoError(t, err)
	require.NoError(t, c.Attach(ticket, verses(n, silent...)))

	signals, _ := c.Subscribe()
	return c, backend, signals
}

type sig struct {
	kind  SignalKind
	index int
}

// drain returns every signal already delivered.
func drain(ch <-chan Signal) []sig {
	var out []sig
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, sig{s.Kind, s.Index})
		default:
			return out
		}
	}
}

// ─────────────────────────────────────────────────────────────────
// tests
// ─────────────────────────────────────────────────────────────────

func TestPlaySingle_StartsBufferingThenPlays(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlaySingle(2))

	snap := c.Snapshot()
	assert.Equal(t, "buffering", snap.Phase)
	assert.Equal(t, "single", snap.Mode)
	assert.Equal(t, 2, snap.Index)
	assert.True(t, snap.Buffering)
	assert.Equal(t, "https://cdn.test/1/2.mp3", backend.last().url)
	assert.Equal(t, []sig{{SignalNowPlaying, 2}}, drain(signals))

	backend.last().ready()

	snap = c.Snapshot()
	assert.Equal(t, "playing", snap.Phase)
	assert.True(t, snap.Playing)
	plays, _ := backend.last().counts()
	assert.Equal(t, 1, plays)
}

func TestPlaySingle_ToggleReusesHandle(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlaySingle(1))
	backend.last().ready()
	drain(signals)

	require.NoError(t, c.PlaySingle(1))
	assert.Equal(t, "paused", c.Snapshot().Phase)

	require.NoError(t, c.PlaySingle(1))
	assert.Equal(t, "playing", c.Snapshot().Phase)

	assert.Equal(t, 1, backend.opened(), "toggling must not reload the clip")
	plays, pauses := backend.last().counts()
	assert.Equal(t, 2, plays)
	assert.Equal(t, 1, pauses)
	assert.Equal(t, []sig{{SignalPaused, 1}, {SignalResumed, 1}}, drain(signals))
}

func TestPlaySingle_OtherVerseReplacesHandle(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlaySingle(1))
	first := backend.last()
	first.ready()

	require.NoError(t, c.PlaySingle(3))

	assert.True(t, first.isClosed())
	assert.Error(t, first.ctx.Err(), "old load must be cancelled")
	assert.Equal(t, 1, backend.live(), "at most one live handle")
	assert.Equal(t, 3, c.Snapshot().Index)
	assert.Equal(t, []sig{{SignalNowPlaying, 1}, {SignalNowPlaying, 3}}, drain(signals))
}

func TestPlaySingle_Errors(t *testing.T) {
	c, backend, signals := newTestController(t, 3, 2)

	err := c.PlaySingle(0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	err = c.PlaySingle(4)
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = c.PlaySingle(2)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, backend.opened())
	assert.Equal(t, "idle", c.Snapshot().Phase)
	assert.Equal(t, []sig{{SignalUnavailable, 2}}, drain(signals))
}

func TestPlaySingle_OpenFailure(t *testing.T) {
	c, backend, signals := newTestController(t, 3)
	boom := errors.New("device busy")
	backend.openErr = boom

	err := c.PlaySingle(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrAudioOpen)

	assert.Equal(t, "idle", c.Snapshot().Phase)
	assert.Equal(t, []sig{{SignalFailed, 1}}, drain(signals))
}

func TestPlayAll_AdvancesToEnd(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlayAll())
	assert.Equal(t, "sequential", c.Snapshot().Mode)

	for i := 1; i <= 3; i++ {
		h := backend.last()
		assert.Equal(t, fmt.Sprintf("https://cdn.test/1/%d.mp3", i), h.url)
		h.ready()
		assert.Equal(t, i, c.Snapshot().Index)
		h.ended()
	}

	snap := c.Snapshot()
	assert.Equal(t, "idle", snap.Phase)
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, 0, backend.live())
	assert.Equal(t, []sig{
		{SignalNowPlaying, 1},
		{SignalNowPlaying, 2},
		{SignalNowPlaying, 3},
		{SignalSequenceComplete, 3},
	}, drain(signals))
}

func TestPlayAll_SkipsVersesWithoutAudio(t *testing.T) {
	c, backend, signals := newTestController(t, 5, 1, 3, 5)

	require.NoError(t, c.PlayAll())
	assert.Equal(t, 2, c.Snapshot().Index)

	backend.last().ready()
	backend.last().ended()
	assert.Equal(t, 4, c.Snapshot().Index)

	backend.last().ready()
	backend.last().ended()
	assert.Equal(t, "idle", c.Snapshot().Phase)

	assert.Equal(t, []sig{
		{SignalSkipped, 1},
		{SignalNowPlaying, 2},
		{SignalSkipped, 3},
		{SignalNowPlaying, 4},
		{SignalSkipped, 5},
		{SignalSequenceComplete, 4},
	}, drain(signals))
}

func TestPlayAll_Toggles(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlayAll())
	backend.last().ready()
	require.NoError(t, c.PlayAll())

	assert.Equal(t, "idle", c.Snapshot().Mode)
	assert.Equal(t, 0, backend.live())
	assert.Equal(t, []sig{{SignalNowPlaying, 1}, {SignalStopped, 1}}, drain(signals))
}

func TestPlayAll_Errors(t *testing.T) {
	backend := &fakeBackend{}
	c := NewController(backend, logger.NewNop())
	defer func() { _ = c.Close() }()

	assert.ErrorIs(t, c.PlayAll(), ErrNoVerses)

	ticket, err := c.Open(2)
	require.NoError(t, err)
	require.NoError(t, c.Attach(ticket, verses(2, 1, 2)))
	assert.ErrorIs(t, c.PlayAll(), ErrUnavailable)
	assert.Equal(t, 0, backend.opened())
}

func TestManualPlayDuringSequenceIsHardCut(t *testing.T) {
	c, backend, signals := newTestController(t, 5)

	require.NoError(t, c.PlayAll())
	backend.last().ready()
	backend.last().ended() // 1 -> 2
	backend.last().ready()

	require.NoError(t, c.PlaySingle(4))
	assert.Equal(t, "single", c.Snapshot().Mode)

	backend.last().ready()
	backend.last().ended()

	assert.Equal(t, "idle", c.Snapshot().Phase, "no auto-advance after a manual pick")
	assert.Equal(t, []sig{
		{SignalNowPlaying, 1},
		{SignalNowPlaying, 2},
		{SignalNowPlaying, 4},
		{SignalEnded, 4},
	}, drain(signals))
}

func TestStaleCallbacksAreIgnored(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlayAll())
	old := backend.last()
	old.ready()

	require.NoError(t, c.PlaySingle(3))
	drain(signals)

	// Late events from the replaced handle must not advance or stop anything
	old.ended()
	old.fail(errors.New("decoder crashed"))

	snap := c.Snapshot()
	assert.Equal(t, 3, snap.Index)
	assert.Equal(t, "buffering", snap.Phase)
	assert.Equal(t, 2, backend.opened())
	assert.Empty(t, drain(signals))
}

func TestStopAllThenLateReady(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlaySingle(1))
	old := backend.last()
	require.NoError(t, c.StopAll())
	drain(signals)

	// the load finishes after the stop
	old.ready()
	old.ended()

	snap := c.Snapshot()
	assert.Equal(t, "idle", snap.Phase)
	assert.Equal(t, 0, snap.Index)
	assert.False(t, snap.Playing)
	plays, _ := old.counts()
	assert.Equal(t, 0, plays)
	assert.Empty(t, drain(signals))

	require.NoError(t, c.PlaySingle(2))
	old.ready()

	snap = c.Snapshot()
	assert.Equal(t, 2, snap.Index)
	assert.Equal(t, "buffering", snap.Phase)
	plays, _ = backend.last().counts()
	assert.Equal(t, 0, plays)
	assert.Equal(t, []sig{{SignalNowPlaying, 2}}, drain(signals))
}

func TestToggleWhileBufferingParksClip(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlaySingle(1))
	require.NoError(t, c.PlaySingle(1))
	assert.Equal(t, "paused", c.Snapshot().Phase)

	backend.last().ready()
	assert.Equal(t, "paused", c.Snapshot().Phase, "ready must not start a parked clip")
	plays, _ := backend.last().counts()
	assert.Equal(t, 0, plays)

	require.NoError(t, c.PlaySingle(1))
	assert.Equal(t, "playing", c.Snapshot().Phase)
	plays, _ = backend.last().counts()
	assert.Equal(t, 1, plays)

	assert.Equal(t, []sig{{SignalNowPlaying, 1}, {SignalPaused, 1}, {SignalResumed, 1}}, drain(signals))
}

func TestBackendErrorResetsToIdle(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlayAll())
	h := backend.last()
	h.fail(errors.New("404 not found"))

	assert.Equal(t, "idle", c.Snapshot().Phase)
	assert.True(t, h.isClosed())
	assert.Equal(t, []sig{{SignalNowPlaying, 1}, {SignalFailed, 1}}, drain(signals))
}

func TestPlayFailureResetsToIdle(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.PlaySingle(1))
	h := backend.last()
	h.playErr = errors.New("device lost")
	h.ready()

	assert.Equal(t, "idle", c.Snapshot().Phase)
	assert.True(t, h.isClosed())
	assert.Equal(t, []sig{{SignalNowPlaying, 1}, {SignalFailed, 1}}, drain(signals))
}

func TestStopAll(t *testing.T) {
	c, backend, signals := newTestController(t, 3)

	require.NoError(t, c.StopAll())
	assert.Empty(t, drain(signals), "stop while idle is silent")

	require.NoError(t, c.PlayAll())
	backend.last().ready()
	require.NoError(t, c.StopAll())

	snap := c.Snapshot()
	assert.Equal(t, "idle", snap.Mode)
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, 0, backend.live())
	assert.Equal(t, []sig{{SignalNowPlaying, 1}, {SignalStopped, 1}}, drain(signals))
}

func TestOpen_StaleTicketIsRejected(t *testing.T) {
	c, backend, _ := newTestController(t, 3)

	require.NoError(t, c.PlayAll())
	backend.last().ready()

	slow, err := c.Open(2)
	require.NoError(t, err)
	assert.Equal(t, "idle", c.Snapshot().Phase, "navigation stops playback")
	assert.Equal(t, 0, backend.live())

	fast, err := c.Open(3)
	require.NoError(t, err)
	require.NoError(t, c.Attach(fast, verses(4)))

	err = c.Attach(slow, verses(7))
	assert.ErrorIs(t, err, ErrStaleTicket)

	snap := c.Snapshot()
	assert.Equal(t, 3, snap.Surah)
	assert.Equal(t, 4, snap.Verses)
}

func TestAttach_RejectsBadNumbering(t *testing.T) {
	c := NewController(&fakeBackend{}, logger.NewNop())
	defer func() { _ = c.Close() }()

	ticket, err := c.Open(1)
	require.NoError(t, err)

	bad := []domain.Verse{{Index: 1}, {Index: 3}}
	assert.ErrorIs(t, c.Attach(ticket, bad), ErrBadPlaylist)

	shuffled := []domain.Verse{{Index: 2, AudioURL: "b"}, {Index: 1, AudioURL: "a"}}
	require.NoError(t, c.Attach(ticket, shuffled))
	require.NoError(t, c.PlaySingle(1))
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	c, backend, _ := newTestController(t, 2)

	// Never read from this one
	_, cancel := c.Subscribe()
	defer cancel()

	for i := 0; i < DefaultSubscriberBuffer*2; i++ {
		require.NoError(t, c.PlaySingle(1+i%2))
	}
	assert.Equal(t, DefaultSubscriberBuffer*2, backend.opened())
}

func TestClose(t *testing.T) {
	c, backend, signals := newTestController(t, 2)

	require.NoError(t, c.PlaySingle(1))
	h := backend.last()
	require.NoError(t, c.Close())

	assert.True(t, h.isClosed())
	assert.ErrorIs(t, c.PlaySingle(1), ErrClosed)

	// events after close are dropped
	h.ready()

	got := drain(signals)
	assert.Equal(t, []sig{{SignalNowPlaying, 1}, {SignalStopped, 1}}, got)
	_, ok := <-signals
	assert.False(t, ok, "subscriptions end on close")
}
