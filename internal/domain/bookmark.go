package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// BookmarkType is the closed set of things a reader can save.
type BookmarkType string

const (
	BookmarkVerse  BookmarkType = "verse"
	BookmarkHadith BookmarkType = "hadith"
	BookmarkDua    BookmarkType = "dua"
)

// BookmarkTypes lists every valid type in display order.
var BookmarkTypes = []BookmarkType{BookmarkVerse, BookmarkHadith, BookmarkDua}

// Valid reports whether t is one of the known bookmark types.
func (t BookmarkType) Valid() bool {
	return slices.Contains(BookmarkTypes, t)
}

// ParseBookmarkType normalizes s and checks it against the closed set.
func ParseBookmarkType(s string) (BookmarkType, error) {
	t := BookmarkType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		names := make([]string, len(BookmarkTypes))
		for i, bt := range BookmarkTypes {
			names[i] = string(bt)
		}
		return "", fmt.Errorf("unknown bookmark type %q, want one of %s", s, strings.Join(names, ", "))
	}
	return t, nil
}

// Bookmark is a saved verse, hadith or dua.
// The text fields are snapshots taken at save time so the bookmark list
// renders without going back to the content APIs.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is generated by the store and never reused.
	ID string `json:"id"`

	// Type is one of verse, hadith or dua.
	Type BookmarkType `json:"type"`

	// ─────────────────────────────
	// Snapshot
	// ─────────────────────────────

	// Title is the display label, e.g. the surah's English name.
	Title string `json:"title"`

	// Arabic is the original-language text, if any.
	Arabic string `json:"arabic,omitempty"`

	// Translation is the translated text, if any.
	Translation string `json:"translation,omitempty"`

	// Reference is the citation.
	// Example: "Al-Fatiha:1", "Sahih Bukhari 1"
	Reference string `json:"reference"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is set once when the bookmark is added.
	CreatedAt time.Time `json:"createdAt"`
}

// NewBookmark is the caller-supplied part of a bookmark.
// The store fills in ID and CreatedAt.
type NewBookmark struct {
	Type        BookmarkType `json:"type"`
	Title       string       `json:"title"`
	Arabic      string       `json:"arabic,omitempty"`
	Translation string       `json:"translation,omitempty"`
	Reference   string       `json:"reference"`
}
