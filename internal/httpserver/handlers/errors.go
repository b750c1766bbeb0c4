package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/noor/internal/bookmarks"
	"github.com/MrSnakeDoc/noor/internal/catalog"
	"github.com/MrSnakeDoc/noor/internal/httpserver/deps"
	"github.com/MrSnakeDoc/noor/internal/httpserver/respond"
	"github.com/MrSnakeDoc/noor/internal/logger"
	"github.com/MrSnakeDoc/noor/internal/playback"
)

// statusFor maps package errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bookmarks.ErrInvalidType),
		errors.Is(err, catalog.ErrInvalidSurah):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrOutOfRange),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, playback.ErrNoVerses),
		errors.Is(err, playback.ErrStaleTicket):
		return http.StatusConflict
	case errors.Is(err, playback.ErrUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrUpstream),
		errors.Is(err, playback.ErrBadPlaylist),
		errors.Is(err, playback.ErrAudioOpen):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, playback.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(d deps.Deps, w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		d.Logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err))
		respond.Error(w, status, "internal error")
		return
	}
	respond.Error(w, status, err.Error())
}
