package playback

// Phase is where the active clip is in its lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuffering
	PhasePlaying
	PhasePaused
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBuffering:
		return "buffering"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Mode tells whether auto-advance is armed.
type Mode int

const (
	ModeIdle Mode = iota
	ModeSingle
	ModeSequential
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeSingle:
		return "single"
	case ModeSequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// State is the controller's whole ephemeral state.
//
// Session identifies the live audio handle. Every handle gets a fresh
// session number, so a callback carrying any other number belongs to a
// handle that was already torn down.
type State struct {
	Phase      Phase
	Index      int  // verse of the live handle, 0 when idle
	Sequential bool // auto-advance armed
	Ready      bool // live handle reported ready to play
	Session    uint64
	// LastSession is the highest session number handed out so far.
	LastSession uint64
}

// Mode derives the playback mode from the state.
func (s State) Mode() Mode {
	switch {
	case s.Phase == PhaseIdle:
		return ModeIdle
	case s.Sequential:
		return ModeSequential
	default:
		return ModeSingle
	}
}

// Active reports whether a handle exists.
func (s State) Active() bool {
	return s.Phase != PhaseIdle
}

// idle returns s reset to idle, keeping the session counter.
func (s State) idle() State {
	return State{LastSession: s.LastSession}
}
