package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/noor/internal/httpserver/deps"
	"github.com/MrSnakeDoc/noor/internal/httpserver/respond"
)

type readyzResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// Readyz is ready once storage answers. A degraded bookmark store is still
// ready: reads work and writes stay in memory.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := d.Storage.Ping(ctx); err != nil {
			respond.JSON(w, http.StatusServiceUnavailable, readyzResponse{
				Ready:  false,
				Reason: d.Storage.Name() + ": " + err.Error(),
			})
			return
		}

		respond.JSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}
