package playback

import "context"

// EventKind is what an audio handle reports back.
type EventKind int

const (
	EventReady EventKind = iota
	EventEnded
	EventError
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a backend callback.
type Event struct {
	Kind EventKind
	Err  error
}

// Backend is the audio primitive: it turns a clip URL into a handle.
//
// Open starts loading and returns immediately. Events for the handle are
// delivered through notify from another goroutine, never from inside Open
// or any Handle method. Cancelling ctx abandons the load.
type Backend interface {
	Name() string
	Open(ctx context.Context, url string, notify func(Event)) (Handle, error)
}

// Handle is one loaded (or loading) clip. Close must not block on the
// goroutine that delivers events.
type Handle interface {
	Play() error
	Pause() error
	Close() error
}
