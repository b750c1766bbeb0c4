// Package catalog holds the surahs the player can serve, from the local
// manifest and from the remote API.
package catalog

import (
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/noor/internal/domain"
)

// Memory is the in-memory surah catalog.
//
// Manifest surahs are replaced as a whole on every manifest reload. Remote
// surahs are added one by one as they are fetched and expire through the
// cache janitor. A manifest entry always wins over a remote one.
//
// Stored surahs are shared, callers must not modify them.
type Memory struct {
	mu         sync.RWMutex
	manifest   map[int]*domain.Surah
	remote     map[int]*domain.Surah
	lastReload time.Time
}

// NewMemory creates an empty catalog.
func NewMemory() *Memory {
	return &Memory{
		manifest: make(map[int]*domain.Surah),
		remote:   make(map[int]*domain.Surah),
	}
}

// ReplaceManifest swaps in the surahs of a freshly loaded manifest.
func (m *Memory) ReplaceManifest(surahs []*domain.Surah) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.manifest = make(map[int]*domain.Surah, len(surahs))
	for _, s := range surahs {
		m.manifest[s.Number] = s
	}
	m.lastReload = time.Now()
}

// Put adds or replaces a remote surah.
func (m *Memory) Put(s *domain.Surah) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remote[s.Number] = s
}

// Get returns surah n, manifest first.
func (m *Memory) Get(n int) (*domain.Surah, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.manifest[n]; ok {
		return s, true
	}
	s, ok := m.remote[n]
	return s, ok
}

// Delete drops remote surah n. Manifest entries are untouched.
func (m *Memory) Delete(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.remote, n)
}

// All returns every surah the catalog can serve, by number.
func (m *Memory) All() []*domain.Surah {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Surah, 0, len(m.manifest)+len(m.remote))
	for _, s := range m.manifest {
		out = append(out, s)
	}
	for n, s := range m.remote {
		if _, shadowed := m.manifest[n]; !shadowed {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// RemoteFetchedBefore lists the remote surahs fetched before cutoff.
func (m *Memory) RemoteFetchedBefore(cutoff time.Time) []*domain.Surah {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Surah
	for _, s := range m.remote {
		if s.FetchedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Stats is a point-in-time summary for health reporting.
type Stats struct {
	Manifest   int       `json:"manifest"`
	Remote     int       `json:"remote"`
	LastReload time.Time `json:"lastReload"`
}

// Stats returns the catalog counts.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Manifest:   len(m.manifest),
		Remote:     len(m.remote),
		LastReload: m.lastReload,
	}
}
