// Package stream runs LabNote streaming requests and exposes their progress
// as observable session state.
//
// A [Session] owns at most one in-flight request. Start blocks while frames
// are folded into the session; Stop and Reset may be called concurrently from
// other goroutines. Failures are recorded in the session rather than returned,
// so callers observe outcomes through Snapshot or a subscribed Listener.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/labnote/labnote"
	"github.com/labnote/labnote/sse"
)

// Session is the state machine for one logical stream handle.
type Session struct {
	transport  labnote.Transport
	onComplete labnote.CompletionFunc
	logger     *slog.Logger

	// emitMu serializes mutations together with listener delivery, so
	// snapshots arrive in mutation order. It is always taken before mu, which
	// guards the fields below and is released while listeners run.
	emitMu sync.Mutex
	mu     sync.Mutex

	state    labnote.State
	text     strings.Builder
	metadata labnote.Metadata
	err      error
	seq      uint64

	run    uint64 // incremented by Start and Reset; stale runs are ignored
	cancel context.CancelFunc

	listeners  []listenerEntry
	listenerID int
}

type listenerEntry struct {
	id int
	fn labnote.Listener
}

// Option configures a [Session].
type Option func(*Session)

// WithCompletion sets the callback invoked when a run completes with
// non-empty text.
func WithCompletion(fn labnote.CompletionFunc) Option {
	return func(s *Session) { s.onComplete = fn }
}

// WithListener subscribes fn at construction time.
func WithListener(fn labnote.Listener) Option {
	return func(s *Session) { s.subscribe(fn) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// New creates an idle Session that issues requests through t.
func New(t labnote.Transport, opts ...Option) *Session {
	s := &Session{transport: t}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Start runs req to completion. Any run already in flight is cancelled first,
// silently, and its remaining frames are discarded. Start resets text,
// metadata and error, enters StateStreaming and returns once this run reaches
// a terminal state or is superseded by another Start or Reset.
//
// Start never reports failure directly: transport and protocol errors leave
// the session in StateErrored, and cancellation of ctx or a call to Stop
// leaves it in StateAborted.
func (s *Session) Start(ctx context.Context, req labnote.Request) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var run uint64
	s.mutate(func() bool {
		if s.cancel != nil {
			s.cancel()
		}
		s.run++
		run = s.run
		s.cancel = cancel
		s.state = labnote.StateStreaming
		s.text.Reset()
		s.metadata = nil
		s.err = nil
		return true
	})
	defer s.release(run)

	log := s.logger.With("path", req.Path, "run", run)
	log.Debug("stream started")

	if s.transport == nil {
		s.fail(run, labnote.TransportError(labnote.ErrNoTransport))
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(run, labnote.TransportError(err))
		return
	}

	body, err := s.transport.Open(ctx, req)
	if err != nil {
		s.interrupted(ctx, run, err)
		return
	}
	// Closing the body releases a read blocked on a stalled backend.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer func() {
		if stop() {
			body.Close()
		}
	}()

	r := sse.NewReader(body, sse.WithLogger(log))
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			s.complete(run)
			return
		}
		if err != nil {
			s.interrupted(ctx, run, err)
			return
		}
		if !s.apply(run, f) {
			return
		}
	}
}

// Stop aborts the run in flight. It is a no-op unless the session is
// streaming, and safe to call any number of times from any goroutine. The
// session ends in StateAborted with no error and the completion callback
// does not fire.
func (s *Session) Stop() {
	s.mutate(func() bool {
		if s.state != labnote.StateStreaming {
			return false
		}
		s.state = labnote.StateAborted
		s.err = nil
		if s.cancel != nil {
			s.cancel()
		}
		s.logger.Debug("stream stopped", "run", s.run)
		return true
	})
}

// Reset stops any run in flight and returns the session to StateIdle with
// empty text, metadata and error.
func (s *Session) Reset() {
	s.mutate(func() bool {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.run++
		s.state = labnote.StateIdle
		s.text.Reset()
		s.metadata = nil
		s.err = nil
		return true
	})
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() labnote.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change and returns
// a function that removes it.
//
// Listeners run synchronously on the goroutine that caused the change, in
// mutation order. They may call Snapshot but must not call Start, Stop or
// Reset.
func (s *Session) Subscribe(fn labnote.Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.subscribe(fn)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(e listenerEntry) bool { return e.id == id })
		})
	}
}

func (s *Session) subscribe(fn labnote.Listener) int {
	s.listenerID++
	s.listeners = append(s.listeners, listenerEntry{id: s.listenerID, fn: fn})
	return s.listenerID
}

// apply folds one frame into the session. It reports whether the read loop
// should continue.
func (s *Session) apply(run uint64, f labnote.Frame) bool {
	if f.Kind == labnote.FrameTerminator {
		s.complete(run)
		return false
	}

	cont := false
	s.mutate(func() bool {
		if !s.activeLocked(run) {
			return false
		}
		switch f.Kind {
		case labnote.FrameChunk:
			if f.Text == "" {
				cont = true
				return false
			}
			s.text.WriteString(f.Text)
		case labnote.FrameMetadata:
			s.metadata = s.metadata.Merge(f.Metadata)
		case labnote.FrameError:
			s.state = labnote.StateErrored
			s.err = labnote.ProtocolError(f.Message)
			s.logger.Warn("stream failed", "run", run, "error", s.err)
		default:
			cont = true
			return false
		}
		cont = !s.state.Terminal()
		return true
	})
	return cont
}

// complete moves an active run to StateCompleted and fires the completion
// callback when there is output.
func (s *Session) complete(run uint64) {
	var (
		done bool
		text string
		md   labnote.Metadata
	)
	s.mutate(func() bool {
		if !s.activeLocked(run) {
			return false
		}
		s.state = labnote.StateCompleted
		done = true
		text = s.text.String()
		md = s.metadata.Clone()
		s.logger.Debug("stream completed", "run", run, "bytes", len(text))
		return true
	})

	if done && text != "" && s.onComplete != nil {
		s.onComplete(text, md)
	}
}

// interrupted records a failure that ended the read loop. Failures caused by
// cancellation are aborts, not errors.
func (s *Session) interrupted(ctx context.Context, run uint64, err error) {
	if ctx.Err() != nil {
		s.abort(run)
		return
	}
	s.fail(run, labnote.TransportError(err))
}

func (s *Session) fail(run uint64, err *labnote.Error) {
	s.mutate(func() bool {
		if !s.activeLocked(run) {
			return false
		}
		s.state = labnote.StateErrored
		s.err = err
		s.logger.Warn("stream failed", "run", run, "error", err)
		return true
	})
}

func (s *Session) abort(run uint64) {
	s.mutate(func() bool {
		if !s.activeLocked(run) {
			return false
		}
		s.state = labnote.StateAborted
		s.logger.Debug("stream aborted", "run", run)
		return true
	})
}

// release drops the cancel function of a finished run.
func (s *Session) release(run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == run {
		s.cancel = nil
	}
}

func (s *Session) activeLocked(run uint64) bool {
	return s.run == run && s.state == labnote.StateStreaming
}

func (s *Session) snapshotLocked() labnote.Snapshot {
	return labnote.Snapshot{
		State:    s.state,
		Text:     s.text.String(),
		Metadata: s.metadata.Clone(),
		Err:      s.err,
		Seq:      s.seq,
		Run:      s.run,
	}
}

// mutate runs fn with mu held. If fn reports a change, the new state is
// published to listeners after mu is released.
func (s *Session) mutate(fn func() bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.seq++
	snap := s.snapshotLocked()
	listeners := make([]labnote.Listener, len(s.listeners))
	for i, e := range s.listeners {
		listeners[i] = e.fn
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
