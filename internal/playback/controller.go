package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/noor/internal/domain"
	"github.com/MrSnakeDoc/noor/internal/logger"
)

// DefaultSubscriberBuffer is the signal buffer of each subscriber.
const DefaultSubscriberBuffer = 32

// Ticket identifies one navigation to a surah. Verses fetched for an old
// ticket are refused.
type Ticket struct {
	Surah      int
	Generation uint64
}

// Snapshot is what the UI needs to render the player.
type Snapshot struct {
	Surah     int    `json:"surah"`
	Verses    int    `json:"verses"`
	Mode      string `json:"mode"`
	Phase     string `json:"phase"`
	Index     int    `json:"index,omitempty"`
	Playing   bool   `json:"playing"`
	Buffering bool   `json:"buffering"`
	Session   uint64 `json:"session,omitempty"`
}

// Controller plays the verses of one surah through a Backend.
// It owns the only audio handle; all access goes through its methods.
type Controller struct {
	mu       sync.Mutex
	backend  Backend
	logger   logger.Logger
	state    State
	playlist Playlist

	surah      int
	generation uint64

	// live handle, belongs to state.Session
	handle        Handle
	handleSession uint64
	cancelLoad    context.CancelFunc

	subs    map[uint64]chan Signal
	nextSub uint64
	dropped uint64
	closed  bool
}

// NewController creates an idle controller with no surah loaded.
func NewController(backend Backend, log logger.Logger) *Controller {
	return &Controller{
		backend: backend,
		logger:  log,
		subs:    make(map[uint64]chan Signal),
	}
}

// PlaySingle plays verse index, or toggles pause/resume when it is the
// verse already loaded.
func (c *Controller) PlaySingle(index int) error {
	return c.dispatch(PlaySingle{Index: index})
}

// PlayAll starts sequential playback at the first verse. Called while a
// sequential run is active it stops it instead.
func (c *Controller) PlayAll() error {
	return c.dispatch(PlayAll{})
}

// StopAll stops and releases everything. Safe to call when idle.
func (c *Controller) StopAll() error {
	return c.dispatch(Stop{})
}

// Open switches the controller to another surah: playback stops and the
// verse list is cleared until Attach is called with the returned ticket.
func (c *Controller) Open(surah int) (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Ticket{}, ErrClosed
	}

	if _, err := c.step(Navigate{Surah: surah}); err != nil {
		return Ticket{}, err
	}

	c.playlist = nil
	c.surah = surah
	c.generation++

	c.logger.Debug("surah opened",
		logger.Int("surah", surah),
		logger.Uint64("generation", c.generation))

	return Ticket{Surah: surah, Generation: c.generation}, nil
}

// Attach installs the verses fetched for a ticket. It fails with
// ErrStaleTicket if another Open happened in the meantime.
func (c *Controller) Attach(t Ticket, verses []domain.Verse) error {
	pl, err := NewPlaylist(verses)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if t.Generation != c.generation {
		c.logger.Debug("dropping verses for stale surah",
			logger.Int("surah", t.Surah),
			logger.Int("current_surah", c.surah))
		return fmt.Errorf("%w: surah %d", ErrStaleTicket, t.Surah)
	}

	c.playlist = pl
	c.logger.Debug("verses attached",
		logger.Int("surah", t.Surah),
		logger.Int("verses", len(pl)))
	return nil
}

// Snapshot returns the current playback state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Surah:     c.surah,
		Verses:    len(c.playlist),
		Mode:      c.state.Mode().String(),
		Phase:     c.state.Phase.String(),
		Index:     c.state.Index,
		Playing:   c.state.Phase == PhasePlaying,
		Buffering: c.state.Phase == PhaseBuffering,
		Session:   c.state.Session,
	}
}

// Subscribe returns a channel of signals and a function that ends the
// subscription. A subscriber that falls behind loses signals rather than
// stalling playback.
func (c *Controller) Subscribe() (<-chan Signal, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Signal, DefaultSubscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops playback and ends every subscription.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	_, err := c.step(Stop{})
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	return err
}

func (c *Controller) dispatch(in Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	_, err := c.step(in)
	return err
}

// events returns the callback handed to the backend for one session.
func (c *Controller) events(session uint64) func(Event) {
	return func(ev Event) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.closed {
			return
		}

		var in Input
		switch ev.Kind {
		case EventReady:
			in = Ready{Session: session}
		case EventEnded:
			in = Ended{Session: session}
		case EventError:
			in = Failed{Session: session, Err: ev.Err}
		default:
			return
		}

		if session != c.state.Session {
			c.logger.Debug("ignoring event from replaced audio handle",
				logger.String("event", ev.Kind.String()),
				logger.Uint64("session", session),
				logger.Uint64("live_session", c.state.Session))
			return
		}

		if _, err := c.step(in); err != nil {
			c.logger.Warn("audio event failed", logger.Error(err))
		}
	}
}

// step runs one transition and applies its effects. Caller holds c.mu.
func (c *Controller) step(in Input) (State, error) {
	next, effects, err := Transition(c.state, c.playlist, in)
	c.state = next

	if applyErr := c.apply(effects); applyErr != nil {
		return c.state, errors.Join(err, applyErr)
	}
	return c.state, err
}

func (c *Controller) apply(effects []Effect) error {
	for _, e := range effects {
		switch e := e.(type) {
		case Teardown:
			c.teardown(e.Session)

		case Load:
			if err := c.load(e); err != nil {
				c.logger.Warn("failed to open audio",
					logger.Int("surah", c.surah),
					logger.Int("verse", e.Index),
					logger.Error(err))
				// Remaining effects of this transition are for the failed
				// handle; the failure transition replaces them.
				_, _ = c.step(Failed{Session: e.Session, Err: err})
				return fmt.Errorf("%w: verse %d: %w", ErrAudioOpen, e.Index, err)
			}

		case Play:
			if h := c.handleFor(e.Session); h != nil {
				if err := h.Play(); err != nil {
					c.logger.Warn("failed to start audio",
						logger.Int("verse", c.state.Index),
						logger.Error(err))
					_, _ = c.step(Failed{Session: e.Session, Err: err})
					return nil
				}
			}

		case Pause:
			if h := c.handleFor(e.Session); h != nil {
				if err := h.Pause(); err != nil {
					c.logger.Warn("failed to pause audio", logger.Error(err))
				}
			}

		case Notify:
			c.publish(e.Signal)
		}
	}
	return nil
}

func (c *Controller) load(e Load) error {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := c.backend.Open(ctx, e.URL, c.events(e.Session))
	if err != nil {
		cancel()
		return err
	}

	c.handle = h
	c.handleSession = e.Session
	c.cancelLoad = cancel

	c.logger.Debug("audio handle opened",
		logger.Int("surah", c.surah),
		logger.Int("verse", e.Index),
		logger.Uint64("session", e.Session),
		logger.String("backend", c.backend.Name()))
	return nil
}

func (c *Controller) teardown(session uint64) {
	if c.handle == nil || c.handleSession != session {
		return
	}

	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	if err := c.handle.Pause(); err != nil {
		c.logger.Debug("pause before teardown failed", logger.Error(err))
	}
	if err := c.handle.Close(); err != nil {
		c.logger.Debug("closing audio handle failed", logger.Error(err))
	}

	c.handle = nil
	c.handleSession = 0
	c.cancelLoad = nil
}

func (c *Controller) handleFor(session uint64) Handle {
	if c.handle == nil || c.handleSession != session {
		return nil
	}
	return c.handle
}

func (c *Controller) publish(sig Signal) {
	sig.Surah = c.surah
	sig.At = time.Now()

	for _, ch := range c.subs {
		select {
		case ch <- sig:
		default:
			c.dropped++
			c.logger.Warn("signal subscriber is falling behind, dropping signal",
				logger.String("kind", string(sig.Kind)),
				logger.Uint64("dropped_total", c.dropped))
		}
	}
}
