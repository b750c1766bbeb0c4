package bookmarks

import "github.com/MrSnakeDoc/noor/internal/domain"

// EventKind names a store event.
type EventKind string

const (
	EventBookmarked    EventKind = "bookmarked"
	EventRemoved       EventKind = "removed"
	EventPersistFailed EventKind = "persist-failed"
)

// Event is reported after a change has been applied in memory.
// A persist-failed event follows the change it belongs to.
type Event struct {
	Kind     EventKind
	Bookmark domain.Bookmark
	Err      error
}

// Notifier receives store events. It is called without the store lock
// held, on the goroutine that made the change.
type Notifier func(Event)
