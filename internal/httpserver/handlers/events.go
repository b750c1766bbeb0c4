package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/noor/internal/httpserver/deps"
	"github.com/MrSnakeDoc/noor/internal/logger"
)

const sseKeepAlive = 15 * time.Second

// PlayerEvents streams player signals as server-sent events. The first
// event is a snapshot; each later event is named after the signal kind.
func PlayerEvents(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)

		signals, unsubscribe := d.Player.Subscribe()
		defer unsubscribe()

		// the stream outlives the server's write timeout
		_ = rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, "snapshot", d.Player.Snapshot()); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			d.Logger.Warn("event stream not supported by writer", logger.Error(err))
			return
		}

		keepAlive := time.NewTicker(sseKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
					return
				}
			case sig, ok := <-signals:
				if !ok {
					// player closed
					return
				}
				if err := writeEvent(w, string(sig.Kind), sig); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
