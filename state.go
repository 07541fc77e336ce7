package labnote

// State indicates where a streaming session is in its lifecycle.
type State int

const (
	StateIdle      State = iota // Nothing started, or Reset() called.
	StateStreaming              // Request issued, frames being folded.
	StateCompleted              // Terminator or clean end of input.
	StateErrored                // Transport failure or protocol error frame.
	StateAborted                // Stop() called while streaming.
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state for a run. Once a run reaches a
// terminal state it never changes again; only a new Start or Reset begins a
// new run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateAborted
}

// ParseState returns the State named by s, as produced by State.String.
func ParseState(s string) (State, bool) {
	for st := StateIdle; st <= StateAborted; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StateIdle, false
}
