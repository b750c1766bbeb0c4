package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/noor/internal/httpserver/deps"
	"github.com/MrSnakeDoc/noor/internal/httpserver/respond"
	"github.com/MrSnakeDoc/noor/internal/logger"
)

type reloadResponse struct {
	Status string `json:"status"`
}

// Reload triggers a manual reload of the recitation manifest
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ReloadTrigger == nil {
			respond.Error(w, http.StatusNotFound, "no manifest configured")
			return
		}

		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual manifest reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			respond.JSON(w, http.StatusAccepted, reloadResponse{Status: "reload triggered"})
		default:
			d.Logger.Warn("manifest reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			respond.Error(w, http.StatusTooManyRequests, "reload already in progress, please wait")
		}
	}
}
