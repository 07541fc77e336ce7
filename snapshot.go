package labnote

// Snapshot is a point-in-time copy of a session's observable state.
type Snapshot struct {
	State    State
	Text     string
	Metadata Metadata
	Err      error // set only in StateErrored

	// Seq increases with every published change, so observers can order
	// snapshots taken from different goroutines.
	Seq uint64

	// Run identifies the run that produced the snapshot. It changes on every
	// Start and Reset.
	Run uint64
}

// Streaming reports whether output is still arriving.
func (s Snapshot) Streaming() bool { return s.State == StateStreaming }

// Listener receives a Snapshot after every state change.
type Listener func(Snapshot)

// CompletionFunc is invoked with the final text and metadata when a stream
// completes successfully with non-empty output.
type CompletionFunc func(text string, metadata Metadata)
