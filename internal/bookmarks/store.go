// Package bookmarks keeps the reader's saved verses, hadiths and duas.
//
// The whole collection lives in memory and is written back to a key-value
// backend as one JSON array under a single key after every change.
package bookmarks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/noor/internal/domain"
	"github.com/MrSnakeDoc/noor/internal/logger"
)

const (
	// DefaultKey is the storage key of the collection.
	DefaultKey = "bookmarks"
	// DefaultTimeout bounds every storage call.
	DefaultTimeout = 3 * time.Second

	maxIDAttempts = 5
)

var (
	ErrInvalidType  = errors.New("invalid bookmark type")
	ErrNotPersisted = errors.New("bookmark change not persisted")

	errDegraded = errors.New("storage unavailable, writes suspended")
)

// Storage is the slice of a key-value backend the store needs.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Store is the in-memory bookmark collection backed by Storage.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	storage  Storage
	logger   logger.Logger
	key      string
	timeout  time.Duration
	notify   Notifier
	now      func() time.Time
	newID    func() (uuid.UUID, error)
	items    []domain.Bookmark
	ids      map[string]struct{}
	degraded error
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key. Default "bookmarks".
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithTimeout bounds each storage call.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithNotifier registers a callback for store events.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notify = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the collection from storage. It never fails: a missing key is
// an empty collection, unreadable data is logged and discarded, and a
// storage error leaves the store empty and degraded so that a passing outage
// cannot overwrite what is stored.
func Open(ctx context.Context, storage Storage, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		logger:  log,
		key:     DefaultKey,
		timeout: DefaultTimeout,
		now:     time.Now,
		newID:   uuid.NewV7,
		items:   []domain.Bookmark{},
		ids:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.String("key", s.key))

	s.load(ctx)
	return s
}

func (s *Store) load(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	raw, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		s.degraded = fmt.Errorf("%w: %w", errDegraded, err)
		s.logger.Error("failed to read bookmarks, starting empty with writes suspended",
			logger.Error(err))
		return
	}
	if !ok || strings.TrimSpace(raw) == "" {
		s.logger.Debug("no stored bookmarks")
		return
	}

	items, err := decode(raw)
	if err != nil {
		s.logger.Error("stored bookmarks are corrupt, starting empty",
			logger.Error(err),
			logger.Int("bytes", len(raw)))
		return
	}

	s.items = items
	for _, b := range items {
		s.ids[b.ID] = struct{}{}
	}
	s.logger.Info("bookmarks loaded", logger.Int("count", len(items)))
}

// decode parses the stored array and rejects it as a whole if any record
// is unusable.
func decode(raw string) ([]domain.Bookmark, error) {
	var items []domain.Bookmark
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	seen := make(map[string]struct{}, len(items))
	for i, b := range items {
		if b.ID == "" {
			return nil, fmt.Errorf("record %d has no id", i)
		}
		if !b.Type.Valid() {
			return nil, fmt.Errorf("record %d (%s): %w %q", i, b.ID, ErrInvalidType, b.Type)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("record %d: duplicate id %s", i, b.ID)
		}
		seen[b.ID] = struct{}{}
	}

	if items == nil {
		items = []domain.Bookmark{}
	}
	return items, nil
}

// Add saves a new bookmark and returns it with its ID and creation time.
// When the write fails the bookmark is still kept for this process and the
// returned error wraps ErrNotPersisted.
func (s *Store) Add(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	if !nb.Type.Valid() {
		return domain.Bookmark{}, fmt.Errorf("%w: %q", ErrInvalidType, nb.Type)
	}

	s.mu.Lock()

	id, err := s.uniqueID(nb.Type)
	if err != nil {
		s.mu.Unlock()
		return domain.Bookmark{}, err
	}

	b := domain.Bookmark{
		ID:          id,
		Type:        nb.Type,
		Title:       nb.Title,
		Arabic:      nb.Arabic,
		Translation: nb.Translation,
		Reference:   nb.Reference,
		CreatedAt:   s.now().UTC(),
	}
	s.items = append(s.items, b)
	s.ids[id] = struct{}{}

	perr := s.persist(ctx)
	s.mu.Unlock()

	s.emit(Event{Kind: EventBookmarked, Bookmark: b})
	if perr != nil {
		s.emit(Event{Kind: EventPersistFailed, Bookmark: b, Err: perr})
		return b, perr
	}

	s.logger.Debug("bookmark added",
		logger.String("id", id),
		logger.String("type", string(b.Type)))
	return b, nil
}

// Remove deletes the bookmark with id. Removing an unknown id is a no-op
// and writes nothing.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()

	if _, ok := s.ids[id]; !ok {
		s.mu.Unlock()
		return nil
	}

	var removed domain.Bookmark
	kept := make([]domain.Bookmark, 0, len(s.items)-1)
	for _, b := range s.items {
		if b.ID == id {
			removed = b
			continue
		}
		kept = append(kept, b)
	}
	s.items = kept
	delete(s.ids, id)

	perr := s.persist(ctx)
	s.mu.Unlock()

	s.emit(Event{Kind: EventRemoved, Bookmark: removed})
	if perr != nil {
		s.emit(Event{Kind: EventPersistFailed, Bookmark: removed, Err: perr})
		return perr
	}

	s.logger.Debug("bookmark removed", logger.String("id", id))
	return nil
}

// IsBookmarked reports whether a bookmark with id exists.
func (s *Store) IsBookmarked(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Get returns the bookmark with id.
func (s *Store) Get(id string) (domain.Bookmark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.ids[id]; !ok {
		return domain.Bookmark{}, false
	}
	for _, b := range s.items {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Bookmark{}, false
}

// All returns every bookmark in insertion order.
func (s *Store) All() []domain.Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Bookmark, len(s.items))
	copy(out, s.items)
	return out
}

// ByType returns the bookmarks of type t in insertion order.
func (s *Store) ByType(t domain.BookmarkType) []domain.Bookmark {
	return s.filter(func(b domain.Bookmark) bool { return b.Type == t })
}

// FindByReference returns the bookmarks of type t citing reference.
// The comparison ignores case and surrounding space.
func (s *Store) FindByReference(t domain.BookmarkType, reference string) []domain.Bookmark {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return []domain.Bookmark{}
	}
	return s.filter(func(b domain.Bookmark) bool {
		return b.Type == t && strings.EqualFold(strings.TrimSpace(b.Reference), ref)
	})
}

// Search ranks bookmarks by how well their title or reference match query.
func (s *Store) Search(query string) []domain.BookmarkCandidate {
	return domain.RankBookmarkCandidates(query, s.All())
}

// Status describes the store for health reporting.
type Status struct {
	Key      string `json:"key"`
	Count    int    `json:"count"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// Status returns the current status.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{Key: s.key, Count: len(s.items), Degraded: s.degraded != nil}
	if s.degraded != nil {
		st.Reason = s.degraded.Error()
	}
	return st
}

func (s *Store) filter(keep func(domain.Bookmark) bool) []domain.Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Bookmark, 0)
	for _, b := range s.items {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// uniqueID returns <type>-<uuidv7>. Caller holds s.mu.
func (s *Store) uniqueID(t domain.BookmarkType) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		u, err := s.newID()
		if err != nil {
			return "", fmt.Errorf("generate bookmark id: %w", err)
		}
		id := string(t) + "-" + u.String()
		if _, taken := s.ids[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate bookmark id: %d collisions in a row", maxIDAttempts)
}

// persist writes the whole collection. Caller holds s.mu, which keeps
// writes in the same order as the changes that caused them.
func (s *Store) persist(parent context.Context) error {
	if s.degraded != nil {
		return fmt.Errorf("%w: %w", ErrNotPersisted, s.degraded)
	}

	data, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrNotPersisted, err)
	}

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	if err := s.storage.Set(ctx, s.key, string(data)); err != nil {
		s.degraded = fmt.Errorf("%w: %w", errDegraded, err)
		s.logger.Error("failed to persist bookmarks, keeping changes in memory only",
			logger.Error(err),
			logger.Int("count", len(s.items)))
		return fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}
	return nil
}

func (s *Store) emit(e Event) {
	if s.notify != nil {
		s.notify(e)
	}
}
