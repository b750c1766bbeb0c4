package playback

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errHandleClosed = errors.New("audio handle closed")

// Sim is a Backend without sound. A clip becomes ready after LoadDelay and
// ends once it has been playing for ClipLength.
type Sim struct {
	LoadDelay  time.Duration
	ClipLength time.Duration
}

// NewSim returns a simulated backend.
func NewSim(loadDelay, clipLength time.Duration) *Sim {
	return &Sim{LoadDelay: loadDelay, ClipLength: clipLength}
}

func (s *Sim) Name() string { return "sim" }

func (s *Sim) Open(ctx context.Context, url string, notify func(Event)) (Handle, error) {
	if url == "" {
		return nil, errors.New("empty audio url")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := &simHandle{
		ctx:       ctx,
		notify:    notify,
		remaining: s.ClipLength,
	}
	h.mu.Lock()
	h.loadTimer = time.AfterFunc(s.LoadDelay, h.loaded)
	h.mu.Unlock()
	return h, nil
}

type simHandle struct {
	mu        sync.Mutex
	ctx       context.Context
	notify    func(Event)
	loadTimer *time.Timer
	playTimer *time.Timer

	remaining time.Duration
	startedAt time.Time
	playing   bool
	closed    bool
}

func (h *simHandle) loaded() {
	h.mu.Lock()
	dead := h.closed || h.ctx.Err() != nil
	h.mu.Unlock()

	if !dead {
		h.notify(Event{Kind: EventReady})
	}
}

func (h *simHandle) finished() {
	h.mu.Lock()
	dead := h.closed || h.ctx.Err() != nil || !h.playing
	if !dead {
		h.playing = false
		h.remaining = 0
	}
	h.mu.Unlock()

	if !dead {
		h.notify(Event{Kind: EventEnded})
	}
}

func (h *simHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errHandleClosed
	}
	if h.playing {
		return nil
	}
	h.playing = true
	h.startedAt = time.Now()
	h.playTimer = time.AfterFunc(h.remaining, h.finished)
	return nil
}

func (h *simHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || !h.playing {
		return nil
	}
	h.playing = false
	if h.playTimer != nil {
		h.playTimer.Stop()
	}
	h.remaining -= time.Since(h.startedAt)
	if h.remaining < 0 {
		h.remaining = 0
	}
	return nil
}

func (h *simHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.playing = false
	if h.loadTimer != nil {
		h.loadTimer.Stop()
	}
	if h.playTimer != nil {
		h.playTimer.Stop()
	}
	return nil
}
