package stream_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labnote/labnote"
	"github.com/labnote/labnote/mock"
	"github.com/labnote/labnote/stream"
	"github.com/stretchr/testify/require"
)

var testRequest = labnote.GenerateRequest("summarize", "# Assay notes")

// staticTransport serves body for every Open call.
func staticTransport(body string) *mock.Transport {
	return &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

// completions records completion callback invocations.
type completions struct {
	mu    sync.Mutex
	calls []completion
}

type completion struct {
	text     string
	metadata labnote.Metadata
}

func (c *completions) record(text string, md labnote.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, completion{text: text, metadata: md})
}

func (c *completions) get() []completion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]completion(nil), c.calls...)
}

// recorder collects published snapshots.
type recorder struct {
	mu    sync.Mutex
	snaps []labnote.Snapshot
}

func (r *recorder) listen(s labnote.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) get() []labnote.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]labnote.Snapshot(nil), r.snaps...)
}

// startAsync runs Start in a goroutine and returns a channel closed when it
// returns.
func startAsync(ctx context.Context, s *stream.Session, req labnote.Request) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx, req)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}
}

func waitFor(t *testing.T, s *stream.Session, cond func(labnote.Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(s.Snapshot()) }, 5*time.Second, time.Millisecond)
}

// gatedBody returns first on the first read, then blocks until gate is
// closed and returns rest. Close does not unblock the read, so frames already
// buffered behind the gate are delivered after a Stop.
func gatedBody(first, rest string, gate <-chan struct{}) *mock.Body {
	reads := 0
	return &mock.Body{
		ReadFn: func(p []byte) (int, error) {
			reads++
			switch reads {
			case 1:
				return copy(p, first), nil
			case 2:
				<-gate
				return copy(p, rest), nil
			default:
				return 0, io.EOF
			}
		},
	}
}
