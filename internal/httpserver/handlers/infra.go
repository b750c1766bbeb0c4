package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/noor/internal/httpserver/deps"
	"github.com/MrSnakeDoc/noor/internal/httpserver/respond"
)

type componentStatus struct {
	OK         bool   `json:"ok"`
	Backend    string `json:"backend,omitempty"`
	Loaded     *int   `json:"loaded,omitempty"`
	LastReload string `json:"last_reload,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Impact     string `json:"impact,omitempty"`
	Error      string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of storage, the surah catalog, the audio player
// and the bookmark store.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"storage":   checkStorage(r.Context(), d),
			"catalog":   catalogStatus(d),
			"audio":     audioStatus(d),
			"bookmarks": bookmarkStatus(d),
		}

		respond.JSON(w, http.StatusOK, infraResponse{
			Status:     overallStatus(components),
			Components: components,
		})
	}
}

func overallStatus(components map[string]componentStatus) string {
	if st, ok := components["storage"]; ok && !st.OK {
		return "critical" // nothing persists
	}
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "optimal"
}

func checkStorage(parent context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	st := componentStatus{OK: true, Backend: d.Storage.Name()}
	if err := d.Storage.Ping(ctx); err != nil {
		st.OK = false
		st.Impact = "bookmarks-and-cache-not-persisted"
		st.Error = err.Error()
	}
	return st
}

func catalogStatus(d deps.Deps) componentStatus {
	stats := d.Catalog.Stats()
	loaded := stats.Manifest + stats.Remote

	lastReload := "never"
	if !stats.LastReload.IsZero() {
		lastReload = stats.LastReload.Format("2006-01-02 15:04:05")
	}

	mode := "remote-only"
	if d.ManifestFile != "" {
		mode = "manifest+remote"
	}

	st := componentStatus{OK: true, Loaded: &loaded, LastReload: lastReload, Mode: mode}
	if d.ManifestFile != "" && stats.Manifest == 0 {
		st.OK = false
		st.Impact = "manifest-surahs-unavailable"
	}
	return st
}

func audioStatus(d deps.Deps) componentStatus {
	snap := d.Player.Snapshot()
	return componentStatus{
		OK:      true,
		Backend: d.AudioBackend,
		Mode:    snap.Phase,
	}
}

func bookmarkStatus(d deps.Deps) componentStatus {
	status := d.Bookmarks.Status()
	count := status.Count

	st := componentStatus{OK: !status.Degraded, Backend: status.Key, Loaded: &count}
	if status.Degraded {
		st.Mode = "memory-only"
		st.Impact = "changes-lost-on-restart"
		st.Error = status.Reason
	}
	return st
}
