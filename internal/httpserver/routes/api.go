package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/noor/internal/httpserver/deps"
	"github.com/MrSnakeDoc/noor/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/noor/internal/httpserver/mw"
)

var (
	shortTimeout = middleware.Timeout(5 * time.Second)

	// opening a surah may wait on the alquran api
	fetchTimeout = middleware.Timeout(30 * time.Second)
)

const navigationCost = 5

func init() { Register(registerAPI) }

// registerAPI mounts /api. The event stream is the only route without a
// request timeout.
func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		api.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		api.Use(mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.RateLimitBurst,
			RefillPerIPPerMin: d.RateLimitRefillMin,
			MaxEntries:        10_000,
			TrustProxy:        d.TrustProxy,
			Cost:              requestCost,
		}))

		api.Route("/bookmarks", func(b chi.Router) {
			b.Use(shortTimeout)
			b.Get("/", handlers.ListBookmarks(d))
			b.Post("/", handlers.AddBookmark(d))
			b.Get("/search", handlers.SearchBookmarks(d))
			b.Get("/lookup", handlers.LookupBookmarks(d))
			b.Get("/{id}", handlers.GetBookmark(d))
			b.Delete("/{id}", handlers.RemoveBookmark(d))
		})

		api.Route("/player", func(p chi.Router) {
			p.Get("/events", handlers.PlayerEvents(d))

			p.With(shortTimeout).Get("/", handlers.PlayerSnapshot(d))
			p.With(fetchTimeout).Put("/surah/{number}", handlers.OpenSurah(d))
			p.With(shortTimeout).Post("/play/{index}", handlers.PlayVerse(d))
			p.With(shortTimeout).Post("/play-all", handlers.PlayAll(d))
			p.With(shortTimeout).Post("/stop", handlers.StopPlayer(d))
		})
	})
}

// requestCost charges surah navigation more: it may call the remote API.
func requestCost(r *http.Request) int {
	if r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/player/surah/") {
		return navigationCost
	}
	return 1
}
