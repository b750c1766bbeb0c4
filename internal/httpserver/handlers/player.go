package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/noor/internal/catalog"
	"github.com/MrSnakeDoc/noor/internal/domain"
	"github.com/MrSnakeDoc/noor/internal/httpserver/deps"
	"github.com/MrSnakeDoc/noor/internal/httpserver/respond"
	"github.com/MrSnakeDoc/noor/internal/playback"
)

type openResponse struct {
	Surah  *domain.Surah     `json:"surah"`
	Player playback.Snapshot `json:"player"`
}

// PlayerSnapshot returns the current player state.
func PlayerSnapshot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, d.Player.Snapshot())
	}
}

// OpenSurah navigates the player to a surah: playback stops at once, then
// the verses are resolved and attached. When another navigation happens
// while the verses are on their way this request fails with 409.
func OpenSurah(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(chi.URLParam(r, "number"))
		if err != nil || !domain.ValidSurah(n) {
			writeErr(d, w, r, fmt.Errorf("%w: %q", catalog.ErrInvalidSurah, chi.URLParam(r, "number")))
			return
		}

		ticket, err := d.Player.Open(n)
		if err != nil {
			writeErr(d, w, r, err)
			return
		}

		s, err := d.Resolver.Resolve(r.Context(), n)
		if err != nil {
			writeErr(d, w, r, err)
			return
		}

		if err := d.Player.Attach(ticket, s.Verses); err != nil {
			writeErr(d, w, r, err)
			return
		}

		respond.JSON(w, http.StatusOK, openResponse{Surah: s, Player: d.Player.Snapshot()})
	}
}

// PlayVerse plays one verse, or pauses/resumes it when it is the current one.
func PlayVerse(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "verse index must be a number")
			return
		}

		if err := d.Player.PlaySingle(index); err != nil {
			writeErr(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, d.Player.Snapshot())
	}
}

// PlayAll starts sequential playback, or stops it when a sequential run is active.
func PlayAll(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Player.PlayAll(); err != nil {
			writeErr(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, d.Player.Snapshot())
	}
}

// StopPlayer stops whatever is playing.
func StopPlayer(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Player.StopAll(); err != nil {
			writeErr(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, d.Player.Snapshot())
	}
}
