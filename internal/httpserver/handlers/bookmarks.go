package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/noor/internal/bookmarks"
	"github.com/MrSnakeDoc/noor/internal/domain"
	"github.com/MrSnakeDoc/noor/internal/httpserver/deps"
	"github.com/MrSnakeDoc/noor/internal/httpserver/respond"
)

const (
	maxBookmarkBody = 64 << 10

	// PersistedHeader is "false" when a change was kept in memory only.
	PersistedHeader = "X-Noor-Persisted"
)

type bookmarkList struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
	Count     int               `json:"count"`
}

type searchResponse struct {
	Query   string                     `json:"query"`
	Results []domain.BookmarkCandidate `json:"results"`
	Count   int                        `json:"count"`
}

func listOf(items []domain.Bookmark) bookmarkList {
	if items == nil {
		items = []domain.Bookmark{}
	}
	return bookmarkList{Bookmarks: items, Count: len(items)}
}

// ListBookmarks returns every bookmark, or only those of ?type=.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("type")
		if raw == "" {
			respond.JSON(w, http.StatusOK, listOf(d.Bookmarks.All()))
			return
		}

		t, err := domain.ParseBookmarkType(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		respond.JSON(w, http.StatusOK, listOf(d.Bookmarks.ByType(t)))
	}
}

// AddBookmark saves the bookmark in the request body.
func AddBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var nb domain.NewBookmark
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBookmarkBody))
		if err := dec.Decode(&nb); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid json body")
			return
		}

		t, err := domain.ParseBookmarkType(string(nb.Type))
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		nb.Type = t

		b, err := d.Bookmarks.Add(r.Context(), nb)
		if err != nil && !errors.Is(err, bookmarks.ErrNotPersisted) {
			writeErr(d, w, r, err)
			return
		}

		w.Header().Set("Location", "/api/bookmarks/"+b.ID)
		w.Header().Set(PersistedHeader, persisted(err))
		respond.JSON(w, http.StatusCreated, b)
	}
}

// GetBookmark answers whether id is bookmarked: 200 with the bookmark, or 404.
func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := d.Bookmarks.Get(chi.URLParam(r, "id"))
		if !ok {
			respond.Error(w, http.StatusNotFound, "bookmark not found")
			return
		}
		respond.JSON(w, http.StatusOK, b)
	}
}

// RemoveBookmark deletes a bookmark. Unknown ids are not an error.
func RemoveBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.Bookmarks.Remove(r.Context(), chi.URLParam(r, "id"))
		if err != nil && !errors.Is(err, bookmarks.ErrNotPersisted) {
			writeErr(d, w, r, err)
			return
		}

		w.Header().Set(PersistedHeader, persisted(err))
		w.WriteHeader(http.StatusNoContent)
	}
}

// SearchBookmarks ranks bookmarks against ?q=.
func SearchBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			respond.Error(w, http.StatusBadRequest, "missing query parameter q")
			return
		}

		results := d.Bookmarks.Search(q)
		if results == nil {
			results = []domain.BookmarkCandidate{}
		}
		respond.JSON(w, http.StatusOK, searchResponse{Query: q, Results: results, Count: len(results)})
	}
}

// LookupBookmarks finds bookmarks by ?type= and ?reference=, so a reader
// can tell whether the verse on screen is already saved.
func LookupBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		t, err := domain.ParseBookmarkType(q.Get("type"))
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		ref := strings.TrimSpace(q.Get("reference"))
		if ref == "" {
			respond.Error(w, http.StatusBadRequest, "missing query parameter reference")
			return
		}

		respond.JSON(w, http.StatusOK, listOf(d.Bookmarks.FindByReference(t, ref)))
	}
}

func persisted(err error) string {
	if err != nil {
		return "false"
	}
	return "true"
}
