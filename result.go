package labnote

import "time"

// Result is the record of one finished run, kept for later inspection.
type Result struct {
	ID         string
	Request    Request
	State      State
	Text       string
	Metadata   Metadata
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewResult records snap as the outcome of req.
func NewResult(id string, req Request, snap Snapshot, started, finished time.Time) Result {
	return Result{
		ID:         id,
		Request:    req,
		State:      snap.State,
		Text:       snap.Text,
		Metadata:   snap.Metadata.Clone(),
		Err:        snap.Err,
		StartedAt:  started,
		FinishedAt: finished,
	}
}

// Duration returns how long the run took.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
