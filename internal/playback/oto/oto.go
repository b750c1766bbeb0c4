// Package oto plays verse clips on the local speakers.
package oto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"github.com/MrSnakeDoc/noor/internal/playback"
	"github.com/MrSnakeDoc/noor/internal/playback/pcm"
	"github.com/MrSnakeDoc/noor/internal/utils"
)

const (
	DefaultSampleRate = 44100
	pollInterval      = 50 * time.Millisecond
	maxClipBytes      = 32 << 20
)

var errClosed = errors.New("audio handle closed")

var _ playback.Backend = (*Backend)(nil)

// Backend plays MP3 clips on the local speakers. Clips recorded at another
// rate are resampled to the device rate.
//
// Only one oto context may exist per process, so one Backend should be
// shared by the whole program.
type Backend struct {
	ctx        *oto.Context
	sampleRate int
	client     *http.Client
}

// New opens the audio device. It waits until the device is ready.
func New(sampleRate int, client *http.Client) (*Backend, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2, // go-mp3 always decodes to stereo
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	return &Backend{ctx: ctx, sampleRate: sampleRate, client: client}, nil
}

func (o *Backend) Name() string { return "oto" }

func (o *Backend) Open(ctx context.Context, url string, notify func(playback.Event)) (playback.Handle, error) {
	if url == "" {
		return nil, errors.New("empty audio url")
	}

	h := &clip{
		notify: notify,
		done:   make(chan struct{}),
	}
	go h.load(ctx, o, url)
	return h, nil
}

// fetch reads a whole clip from an http(s) URL or a local path.
func (o *Backend) fetch(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		f, err := os.Open(strings.TrimPrefix(url, "file://"))
		if err != nil {
			return nil, err
		}
		defer utils.MustClose(f)
		return io.ReadAll(io.LimitReader(f, maxClipBytes))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer utils.MustClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxClipBytes))
}

type clip struct {
	mu     sync.Mutex
	notify func(playback.Event)
	done   chan struct{}

	player *oto.Player
	src    *eofReader
	want   bool // Play requested
	closed bool
}

func (h *clip) load(ctx context.Context, o *Backend, url string) {
	data, err := o.fetch(ctx, url)
	if err == nil {
		err = h.prepare(o, data)
	}

	if ctx.Err() != nil || h.isClosed() {
		return
	}
	if err != nil {
		h.notify(playback.Event{Kind: playback.EventError, Err: err})
		return
	}

	h.notify(playback.Event{Kind: playback.EventReady})
	go h.watch()
}

func (h *clip) prepare(o *Backend, data []byte) error {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.src = &eofReader{r: dec}
	h.player = o.ctx.NewPlayer(pcm.Resample(h.src, dec.SampleRate(), o.sampleRate))
	if h.want {
		h.player.Play()
	}
	return nil
}

// watch reports the end of the clip once the decoder is drained and the
// player has nothing left to output.
func (h *clip) watch() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		h.mu.Lock()
		if h.closed || h.player == nil || !h.want {
			h.mu.Unlock()
			continue
		}
		perr := h.player.Err()
		finished := h.src.Done() && !h.player.IsPlaying()
		h.mu.Unlock()

		switch {
		case perr != nil:
			h.notify(playback.Event{Kind: playback.EventError, Err: perr})
			return
		case finished:
			h.notify(playback.Event{Kind: playback.EventEnded})
			return
		}
	}
}

func (h *clip) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *clip) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errClosed
	}
	h.want = true
	if h.player != nil {
		h.player.Play()
	}
	return nil
}

func (h *clip) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.want = false
	if h.player != nil {
		h.player.Pause()
	}
	return nil
}

func (h *clip) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	if h.player != nil {
		return h.player.Close()
	}
	return nil
}

// eofReader remembers when the wrapped reader hit EOF.
type eofReader struct {
	r    io.Reader
	mu   sync.Mutex
	done bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.EOF) {
		e.mu.Lock()
		e.done = true
		e.mu.Unlock()
	}
	return n, err
}

func (e *eofReader) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}
