package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/noor/internal/logger"
)

func TestSim_PlaysSurahToCompletion(t *testing.T) {
	c := NewController(NewSim(5*time.Millisecond, 10*time.Millisecond), logger.NewNop())
	defer func() { _ = c.Close() }()

	ticket, err := c.Open(112)
	require.NoError(t, err)
	require.NoError(t, c.Attach(ticket, verses(4, 2)))

	signals, cancel := c.Subscribe()
	defer cancel()

	require.NoError(t, c.PlayAll())

	var got []SignalKind
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-signals:
			got = append(got, s.Kind)
			assert.Equal(t, 112, s.Surah)
			if s.Kind == SignalSequenceComplete {
				assert.Equal(t, []SignalKind{
					SignalNowPlaying,
					SignalSkipped,
					SignalNowPlaying,
					SignalNowPlaying,
					SignalSequenceComplete,
				}, got)
				assert.Equal(t, "idle", c.Snapshot().Phase)
				return
			}
		case <-timeout:
			t.Fatalf("sequence did not complete, got %v", got)
		}
	}
}

func TestSim_PauseHoldsClip(t *testing.T) {
	c := NewController(NewSim(time.Millisecond, 30*time.Millisecond), logger.NewNop())
	defer func() { _ = c.Close() }()

	ticket, err := c.Open(1)
	require.NoError(t, err)
	require.NoError(t, c.Attach(ticket, verses(1)))

	require.NoError(t, c.PlaySingle(1))
	require.Eventually(t, func() bool { return c.Snapshot().Playing }, time.Second, time.Millisecond)

	require.NoError(t, c.PlaySingle(1))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, "paused", c.Snapshot().Phase, "paused clip must not end")

	require.NoError(t, c.PlaySingle(1))
	require.Eventually(t, func() bool { return c.Snapshot().Phase == "idle" }, time.Second, time.Millisecond)
}

func TestSim_ClosedHandleIsSilent(t *testing.T) {
	b := NewSim(5*time.Millisecond, 5*time.Millisecond)
	fired := make(chan Event, 1)

	h, err := b.Open(context.Background(), "https://cdn.test/1/1.mp3", func(ev Event) { fired <- ev })
	require.NoError(t, err)
	require.NoError(t, h.Close())

	select {
	case ev := <-fired:
		t.Fatalf("closed handle fired %s", ev.Kind)
	case <-time.After(30 * time.Millisecond):
	}

	assert.ErrorIs(t, h.Play(), errHandleClosed)
}
