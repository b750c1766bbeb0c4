package playback

import "time"

// SignalKind names an outcome the UI layer may want to render.
type SignalKind string

const (
	SignalNowPlaying       SignalKind = "now-playing"
	SignalPaused           SignalKind = "paused"
	SignalResumed          SignalKind = "resumed"
	SignalEnded            SignalKind = "ended"
	SignalSkipped          SignalKind = "skipped"
	SignalSequenceComplete SignalKind = "sequence-complete"
	SignalStopped          SignalKind = "stopped"
	SignalUnavailable      SignalKind = "unavailable"
	SignalFailed           SignalKind = "playback-failed"
)

// Signal is emitted once per observable outcome, in order.
type Signal struct {
	Kind  SignalKind `json:"kind"`
	Surah int        `json:"surah,omitempty"`
	Index int        `json:"index,omitempty"`
	Error string     `json:"error,omitempty"`
	At    time.Time  `json:"at"`
}
