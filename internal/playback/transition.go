package playback

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MrSnakeDoc/noor/internal/domain"
)

var (
	ErrOutOfRange   = errors.New("verse index out of range")
	ErrUnavailable  = errors.New("verse has no audio")
	ErrNoVerses     = errors.New("no verses loaded")
	ErrBadPlaylist  = errors.New("verses must be numbered 1..N")
	ErrStaleTicket  = errors.New("surah changed before verses arrived")
	ErrClosed       = errors.New("controller closed")
	ErrAudioOpen    = errors.New("audio backend could not open clip")
	errUnknownInput = errors.New("unknown input")
)

// Playlist is the verses of one surah, verse i at position i-1.
type Playlist []domain.Verse

// NewPlaylist sorts verses by index and checks they are numbered 1..N.
func NewPlaylist(verses []domain.Verse) (Playlist, error) {
	pl := make(Playlist, len(verses))
	copy(pl, verses)
	sort.SliceStable(pl, func(i, j int) bool { return pl[i].Index < pl[j].Index })

	for i, v := range pl {
		if v.Index != i+1 {
			return nil, fmt.Errorf("%w: position %d holds verse %d", ErrBadPlaylist, i+1, v.Index)
		}
	}
	return pl, nil
}

// At returns verse i (1-based).
func (pl Playlist) At(i int) (domain.Verse, bool) {
	if i < 1 || i > len(pl) {
		return domain.Verse{}, false
	}
	return pl[i-1], true
}

// nextPlayable finds the first verse after index `after` that has audio.
// Verses without audio on the way are returned in skipped.
func (pl Playlist) nextPlayable(after int) (next int, skipped []int, ok bool) {
	for i := after + 1; i <= len(pl); i++ {
		if pl[i-1].HasAudio() {
			return i, skipped, true
		}
		skipped = append(skipped, i)
	}
	return 0, skipped, false
}

// ─────────────────────────────────────────────────────────────────
// Inputs
// ─────────────────────────────────────────────────────────────────

// Input is a request from the UI or an event from the audio backend.
type Input interface{ input() }

// PlaySingle plays one verse, or toggles pause if it is the live verse.
type PlaySingle struct{ Index int }

// PlayAll starts sequential playback from the first verse, or stops it
// when it is already running.
type PlayAll struct{}

// Stop tears everything down.
type Stop struct{}

// Navigate is sent when the hosted surah changes. Playback stops; the
// controller replaces the playlist afterwards.
type Navigate struct{ Surah int }

// Ready reports that a handle can start sounding.
type Ready struct{ Session uint64 }

// Ended reports that a handle played to its natural end.
type Ended struct{ Session uint64 }

// Failed reports a load, decode or playback error on a handle.
type Failed struct {
	Session uint64
	Err     error
}

func (PlaySingle) input() {}
func (PlayAll) input()    {}
func (Stop) input()       {}
func (Navigate) input()   {}
func (Ready) input()      {}
func (Ended) input()      {}
func (Failed) input()     {}

// ─────────────────────────────────────────────────────────────────
// Effects
// ─────────────────────────────────────────────────────────────────

// Effect is a side effect the controller must carry out, in order.
type Effect interface{ effect() }

// Teardown pauses and releases the handle of a session.
type Teardown struct{ Session uint64 }

// Load creates a new handle for a verse's audio.
type Load struct {
	Session uint64
	Index   int
	URL     string
}

// Play starts or resumes the handle of a session.
type Play struct{ Session uint64 }

// Pause pauses the handle of a session.
type Pause struct{ Session uint64 }

// Notify emits a signal. Surah and At are filled by the controller.
type Notify struct{ Signal Signal }

func (Teardown) effect() {}
func (Load) effect()     {}
func (Play) effect()     {}
func (Pause) effect()    {}
func (Notify) effect()   {}

func notify(kind SignalKind, index int) Effect {
	return Notify{Signal: Signal{Kind: kind, Index: index}}
}

// ─────────────────────────────────────────────────────────────────
// Transition
// ─────────────────────────────────────────────────────────────────

// Transition computes the next state and the effects needed to get there.
// It has no side effects. A non-nil error means the request was rejected;
// the returned effects (if any) still have to be applied.
func Transition(s State, pl Playlist, in Input) (State, []Effect, error) {
	switch in := in.(type) {
	case PlaySingle:
		return playSingle(s, pl, in.Index)
	case PlayAll:
		return playAll(s, pl)
	case Stop, Navigate:
		next, effects := stop(s)
		return next, effects, nil
	case Ready:
		next, effects := ready(s, in.Session)
		return next, effects, nil
	case Ended:
		next, effects := ended(s, pl, in.Session)
		return next, effects, nil
	case Failed:
		next, effects := failed(s, in.Session, in.Err)
		return next, effects, nil
	default:
		return s, nil, fmt.Errorf("%w: %T", errUnknownInput, in)
	}
}

func playSingle(s State, pl Playlist, index int) (State, []Effect, error) {
	verse, ok := pl.At(index)
	if !ok {
		return s, nil, fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, index, len(pl))
	}

	// Same verse: pause/resume the existing handle, no reload
	if s.Active() && s.Index == index {
		next, effects := toggle(s)
		return next, effects, nil
	}

	if !verse.HasAudio() {
		return s, []Effect{notify(SignalUnavailable, index)}, fmt.Errorf("%w: %d", ErrUnavailable, index)
	}

	// Any other verse is a hard cut, sequential included
	next, effects := start(s, index, verse.AudioURL, false, nil)
	return next, effects, nil
}

func toggle(s State) (State, []Effect) {
	switch s.Phase {
	case PhasePlaying:
		s.Phase = PhasePaused
		return s, []Effect{Pause{Session: s.Session}, notify(SignalPaused, s.Index)}
	case PhaseBuffering:
		// Not sounding yet: park it, it stays paused when ready arrives
		s.Phase = PhasePaused
		return s, []Effect{notify(SignalPaused, s.Index)}
	case PhasePaused:
		if !s.Ready {
			s.Phase = PhaseBuffering
			return s, []Effect{notify(SignalResumed, s.Index)}
		}
		s.Phase = PhasePlaying
		return s, []Effect{Play{Session: s.Session}, notify(SignalResumed, s.Index)}
	default:
		return s, nil
	}
}

func playAll(s State, pl Playlist) (State, []Effect, error) {
	// One control starts and stops sequential playback
	if s.Active() && s.Sequential {
		next, effects := stop(s)
		return next, effects, nil
	}

	if len(pl) == 0 {
		return s, nil, ErrNoVerses
	}

	first, skipped, ok := pl.nextPlayable(0)
	if !ok {
		return s, []Effect{notify(SignalUnavailable, 0)}, fmt.Errorf("%w: no verse of %d has audio", ErrUnavailable, len(pl))
	}

	verse, _ := pl.At(first)
	next, effects := start(s, first, verse.AudioURL, true, skipNotices(skipped))
	return next, effects, nil
}

// start tears down the live handle (if any) and loads a new one.
// between is emitted after the teardown and before the load.
func start(s State, index int, url string, sequential bool, between []Effect) (State, []Effect) {
	effects := make([]Effect, 0, 3+len(between))
	if s.Session != 0 {
		effects = append(effects, Teardown{Session: s.Session})
	}
	effects = append(effects, between...)

	session := s.LastSession + 1
	next := State{
		Phase:       PhaseBuffering,
		Index:       index,
		Sequential:  sequential,
		Session:     session,
		LastSession: session,
	}

	effects = append(effects,
		Load{Session: session, Index: index, URL: url},
		notify(SignalNowPlaying, index),
	)
	return next, effects
}

func stop(s State) (State, []Effect) {
	if !s.Active() {
		return s.idle(), nil
	}
	return s.idle(), []Effect{
		Teardown{Session: s.Session},
		notify(SignalStopped, s.Index),
	}
}

func ready(s State, session uint64) (State, []Effect) {
	if !live(s, session) || s.Ready {
		return s, nil
	}

	s.Ready = true
	if s.Phase != PhaseBuffering {
		// Paused while loading: stay paused
		return s, nil
	}
	s.Phase = PhasePlaying
	return s, []Effect{Play{Session: session}}
}

func ended(s State, pl Playlist, session uint64) (State, []Effect) {
	if !live(s, session) {
		return s, nil
	}

	if !s.Sequential {
		return s.idle(), []Effect{
			Teardown{Session: session},
			notify(SignalEnded, s.Index),
		}
	}

	next, skipped, ok := pl.nextPlayable(s.Index)
	if !ok {
		effects := []Effect{Teardown{Session: session}}
		effects = append(effects, skipNotices(skipped)...)
		effects = append(effects, notify(SignalSequenceComplete, s.Index))
		return s.idle(), effects
	}

	verse, _ := pl.At(next)
	return start(s, next, verse.AudioURL, true, skipNotices(skipped))
}

func failed(s State, session uint64, err error) (State, []Effect) {
	if !live(s, session) {
		return s, nil
	}

	signal := Signal{Kind: SignalFailed, Index: s.Index}
	if err != nil {
		signal.Error = err.Error()
	}
	return s.idle(), []Effect{
		Teardown{Session: session},
		Notify{Signal: signal},
	}
}

// live reports whether a backend event belongs to the current handle.
func live(s State, session uint64) bool {
	return s.Active() && session != 0 && session == s.Session
}

func skipNotices(indexes []int) []Effect {
	if len(indexes) == 0 {
		return nil
	}
	effects := make([]Effect, 0, len(indexes))
	for _, i := range indexes {
		effects = append(effects, notify(SignalSkipped, i))
	}
	return effects
}
