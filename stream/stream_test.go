package stream_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/labnote/labnote"
	"github.com/labnote/labnote/mock"
	"github.com/labnote/labnote/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Completes(t *testing.T) {
	t.Parallel()
	var cb completions
	s := stream.New(staticTransport(
		"event: metadata\ndata: {\"notes\":[{\"id\":4,\"title\":\"Gel run\",\"notebook\":\"Lab\"}]}\n\n"+
			"data: {\"chunk\":\"Hello\"}\n\n"+
			"data: {\"chunk\":\" world\"}\n\n"+
			"data: [DONE]\n\n",
	), stream.WithCompletion(cb.record))

	s.Start(context.Background(), testRequest)

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateCompleted, snap.State)
	assert.Equal(t, "Hello world", snap.Text)
	assert.NoError(t, snap.Err)
	assert.Equal(t, []labnote.NoteRef{{ID: 4, Title: "Gel run", Notebook: "Lab"}}, snap.Metadata.Notes())

	calls := cb.get()
	require.Len(t, calls, 1)
	assert.Equal(t, "Hello world", calls[0].text)
	assert.Equal(t, snap.Metadata, calls[0].metadata)
}

func TestSession_ChunkAccumulationOrder(t *testing.T) {
	t.Parallel()
	parts := []string{"The ", "three ", "notes ", "describe ", "one ", "assay."}
	var body string
	for _, p := range parts {
		body += `data: {"chunk":"` + p + `"}` + "\n"
	}
	s := stream.New(staticTransport(body))

	s.Start(context.Background(), testRequest)

	assert.Equal(t, "The three notes describe one assay.", s.Snapshot().Text)
}

func TestSession_EndOfInputWithoutTerminatorCompletes(t *testing.T) {
	t.Parallel()
	var cb completions
	s := stream.New(staticTransport("data: {\"chunk\":\"partial answer\"}\n"), stream.WithCompletion(cb.record))

	s.Start(context.Background(), testRequest)

	assert.Equal(t, labnote.StateCompleted, s.Snapshot().State)
	assert.Len(t, cb.get(), 1)
}

func TestSession_TerminatorAfterErrorStaysErrored(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name:    "typed error",
			body:    "data: {\"chunk\":\"A\"}\nevent: error\ndata: model overloaded\ndata: [DONE]\n",
			message: "model overloaded",
		},
		{
			name:    "json error",
			body:    "data: {\"chunk\":\"A\"}\ndata: {\"error\":\"quota exceeded\"}\ndata: [DONE]\n",
			message: "quota exceeded",
		},
		{
			name:    "json error with mistyped chunk",
			body:    "data: {\"chunk\":\"A\"}\ndata: {\"error\":\"quota exceeded\",\"chunk\":0}\ndata: [DONE]\n",
			message: "quota exceeded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var cb completions
			s := stream.New(staticTransport(tt.body), stream.WithCompletion(cb.record))

			s.Start(context.Background(), testRequest)

			snap := s.Snapshot()
			assert.Equal(t, labnote.StateErrored, snap.State)
			assert.Equal(t, "A", snap.Text)
			require.Error(t, snap.Err)
			assert.Equal(t, tt.message, snap.Err.Error())
			assert.True(t, labnote.IsProtocol(snap.Err))
			assert.Empty(t, cb.get())
		})
	}
}

func TestSession_EmptyStreamDoesNotInvokeCompletion(t *testing.T) {
	t.Parallel()
	var cb completions
	s := stream.New(staticTransport("data: [DONE]\n"), stream.WithCompletion(cb.record))

	s.Start(context.Background(), testRequest)

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateCompleted, snap.State)
	assert.Empty(t, snap.Text)
	assert.Empty(t, cb.get())
}

func TestSession_MalformedFrameTolerance(t *testing.T) {
	t.Parallel()
	var cb completions
	s := stream.New(staticTransport(
		"data: {\"chunk\":\"A\"}\ndata: {not json\ndata: {\"chunk\":\"B\"}\ndata: [DONE]\n",
	), stream.WithCompletion(cb.record))

	s.Start(context.Background(), testRequest)

	snap := s.Snapshot()
	assert.Equal(t, "AB", snap.Text)
	assert.Equal(t, labnote.StateCompleted, snap.State)
	assert.NoError(t, snap.Err)
	assert.Len(t, cb.get(), 1)
}

func TestSession_MetadataMerge(t *testing.T) {
	t.Parallel()
	s := stream.New(staticTransport(
		"event: metadata\ndata: {\"model\":\"a\",\"notes\":[]}\n" +
			"event: metadata\ndata: {\"model\":\"b\",\"cluster\":2}\n" +
			"event: metadata\ndata: not json\n" +
			"data: [DONE]\n",
	))

	s.Start(context.Background(), testRequest)

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateCompleted, snap.State)
	assert.Equal(t, labnote.Metadata{"model": "b", "notes": []any{}, "cluster": float64(2)}, snap.Metadata)
}

func TestSession_StopSuppressesCompletion(t *testing.T) {
	t.Parallel()
	var cb completions
	gate := make(chan struct{})
	tr := &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			return gatedBody("data: {\"chunk\":\"A\"}\n", "data: {\"chunk\":\"B\"}\ndata: [DONE]\n", gate), nil
		},
	}
	s := stream.New(tr, stream.WithCompletion(cb.record))

	done := startAsync(context.Background(), s, testRequest)
	waitFor(t, s, func(snap labnote.Snapshot) bool { return snap.Text == "A" })

	s.Stop()
	close(gate)
	waitDone(t, done)

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateAborted, snap.State)
	assert.Equal(t, "A", snap.Text)
	assert.NoError(t, snap.Err)
	assert.Empty(t, cb.get())
}

func TestSession_StopReleasesBlockedRead(t *testing.T) {
	t.Parallel()
	pr, pw := io.Pipe()
	defer pw.Close()
	tr := &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			return pr, nil
		},
	}
	s := stream.New(tr)

	done := startAsync(context.Background(), s, testRequest)
	_, err := pw.Write([]byte("data: {\"chunk\":\"thinking\"}\n"))
	require.NoError(t, err)
	waitFor(t, s, func(snap labnote.Snapshot) bool { return snap.Text == "thinking" })

	s.Stop()
	waitDone(t, done)

	assert.Equal(t, labnote.StateAborted, s.Snapshot().State)
}

func TestSession_StopIsNoOpUnlessStreaming(t *testing.T) {
	t.Parallel()
	var rec recorder
	s := stream.New(staticTransport("data: {\"chunk\":\"x\"}\ndata: [DONE]\n"), stream.WithListener(rec.listen))

	s.Stop()
	assert.Equal(t, labnote.StateIdle, s.Snapshot().State)
	assert.Empty(t, rec.get())

	s.Start(context.Background(), testRequest)
	n := len(rec.get())
	s.Stop()
	s.Stop()

	assert.Equal(t, labnote.StateCompleted, s.Snapshot().State)
	assert.Len(t, rec.get(), n)
}

func TestSession_ContextCancellationAborts(t *testing.T) {
	t.Parallel()
	pr, pw := io.Pipe()
	defer pw.Close()
	tr := &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			return pr, nil
		},
	}
	s := stream.New(tr)
	ctx, cancel := context.WithCancel(context.Background())

	done := startAsync(ctx, s, testRequest)
	waitFor(t, s, func(snap labnote.Snapshot) bool { return snap.Streaming() })
	cancel()
	waitDone(t, done)

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateAborted, snap.State)
	assert.NoError(t, snap.Err)
}

func TestSession_CancelledWhileOpening(t *testing.T) {
	t.Parallel()
	opened := make(chan struct{})
	tr := &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			close(opened)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	s := stream.New(tr)

	done := startAsync(context.Background(), s, testRequest)
	<-opened
	s.Stop()
	waitDone(t, done)

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateAborted, snap.State)
	assert.NoError(t, snap.Err)
}

func TestSession_SingleFlightRestart(t *testing.T) {
	t.Parallel()
	var cb completions
	var rec recorder

	conns := make(chan *io.PipeWriter, 2)
	tr := &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			pr, pw := io.Pipe()
			conns <- pw
			return pr, nil
		},
	}
	s := stream.New(tr, stream.WithCompletion(cb.record), stream.WithListener(rec.listen))

	first := startAsync(context.Background(), s, labnote.GenerateRequest("summarize", "old"))
	w1 := <-conns
	_, err := w1.Write([]byte("data: {\"chunk\":\"stale-\"}\n"))
	require.NoError(t, err)
	waitFor(t, s, func(snap labnote.Snapshot) bool { return snap.Text == "stale-" })

	second := startAsync(context.Background(), s, labnote.GenerateRequest("summarize", "new"))
	w2 := <-conns
	waitDone(t, first)

	// The first body is closed once its run is cancelled.
	_, err = w1.Write([]byte("data: {\"chunk\":\"late\"}\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	_, err = w2.Write([]byte("data: {\"chunk\":\"fresh\"}\ndata: [DONE]\n"))
	require.NoError(t, err)
	require.NoError(t, w2.Close())
	waitDone(t, second)

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateCompleted, snap.State)
	assert.Equal(t, "fresh", snap.Text)

	calls := cb.get()
	require.Len(t, calls, 1)
	assert.Equal(t, "fresh", calls[0].text)

	terminal := 0
	for _, sn := range rec.get() {
		if sn.State.Terminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
}

func TestSession_TransportError(t *testing.T) {
	t.Parallel()
	var cb completions
	wantErr := &labnote.Error{Kind: labnote.ErrorTransport, Status: 502, Message: "http: 502 Bad Gateway", Err: labnote.ErrUnexpectedStatus}
	tr := &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			return nil, wantErr
		},
	}
	s := stream.New(tr, stream.WithCompletion(cb.record))

	s.Start(context.Background(), testRequest)

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateErrored, snap.State)
	assert.ErrorIs(t, snap.Err, labnote.ErrUnexpectedStatus)
	var le *labnote.Error
	require.ErrorAs(t, snap.Err, &le)
	assert.Equal(t, labnote.ErrorTransport, le.Kind)
	assert.Equal(t, 502, le.Status)
	assert.False(t, labnote.IsProtocol(snap.Err))
	assert.Empty(t, cb.get())
}

func TestSession_ReadErrorKeepsText(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection reset by peer")
	reads := 0
	tr := &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			return &mock.Body{ReadFn: func(p []byte) (int, error) {
				reads++
				if reads == 1 {
					return copy(p, "data: {\"chunk\":\"half\"}\n"), nil
				}
				return 0, boom
			}}, nil
		},
	}
	s := stream.New(tr)

	s.Start(context.Background(), testRequest)

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateErrored, snap.State)
	assert.Equal(t, "half", snap.Text)
	assert.ErrorIs(t, snap.Err, boom)
}

func TestSession_InvalidRequest(t *testing.T) {
	t.Parallel()
	opened := false
	tr := &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			opened = true
			return nil, errors.New("unreachable")
		},
	}
	s := stream.New(tr)

	s.Start(context.Background(), labnote.Request{Path: labnote.PathAIStream})

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateErrored, snap.State)
	assert.ErrorIs(t, snap.Err, labnote.ErrValidation)
	assert.False(t, opened)
}

func TestSession_NoTransport(t *testing.T) {
	t.Parallel()
	s := stream.New(nil)

	s.Start(context.Background(), testRequest)

	assert.ErrorIs(t, s.Snapshot().Err, labnote.ErrNoTransport)
}

func TestSession_Reset(t *testing.T) {
	t.Parallel()

	t.Run("clears a finished session", func(t *testing.T) {
		t.Parallel()
		s := stream.New(staticTransport("event: metadata\ndata: {\"k\":1}\ndata: {\"error\":\"x\"}\n"))
		s.Start(context.Background(), testRequest)
		require.Equal(t, labnote.StateErrored, s.Snapshot().State)

		s.Reset()

		snap := s.Snapshot()
		assert.Equal(t, labnote.StateIdle, snap.State)
		assert.Empty(t, snap.Text)
		assert.Nil(t, snap.Metadata)
		assert.NoError(t, snap.Err)
	})

	t.Run("stops a running stream", func(t *testing.T) {
		t.Parallel()
		var cb completions
		pr, pw := io.Pipe()
		defer pw.Close()
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
				return pr, nil
			},
		}
		s := stream.New(tr, stream.WithCompletion(cb.record))

		done := startAsync(context.Background(), s, testRequest)
		_, err := pw.Write([]byte("data: {\"chunk\":\"x\"}\n"))
		require.NoError(t, err)
		waitFor(t, s, func(snap labnote.Snapshot) bool { return snap.Text == "x" })

		s.Reset()
		waitDone(t, done)

		snap := s.Snapshot()
		assert.Equal(t, labnote.StateIdle, snap.State)
		assert.Empty(t, snap.Text)
		assert.Empty(t, cb.get())
	})
}

func TestSession_RestartAfterCompletion(t *testing.T) {
	t.Parallel()
	var cb completions
	s := stream.New(staticTransport("data: {\"chunk\":\"again\"}\ndata: [DONE]\n"), stream.WithCompletion(cb.record))

	s.Start(context.Background(), testRequest)
	first := s.Snapshot().Run
	s.Start(context.Background(), testRequest)

	snap := s.Snapshot()
	assert.Equal(t, "again", snap.Text)
	assert.NotEqual(t, first, snap.Run)
	assert.Len(t, cb.get(), 2)

	s.Reset()
	assert.NotEqual(t, snap.Run, s.Snapshot().Run)
}

func TestSession_ListenerReceivesOrderedSnapshots(t *testing.T) {
	t.Parallel()
	var rec recorder
	s := stream.New(staticTransport(
		"event: metadata\ndata: {\"k\":\"v\"}\ndata: {\"chunk\":\"a\"}\ndata: {\"chunk\":\"\"}\ndata: {\"chunk\":\"b\"}\ndata: [DONE]\n",
	))
	unsubscribe := s.Subscribe(rec.listen)
	defer unsubscribe()

	s.Start(context.Background(), testRequest)

	snaps := rec.get()
	require.Len(t, snaps, 5)
	assert.Equal(t, labnote.StateStreaming, snaps[0].State)
	assert.Empty(t, snaps[0].Text)
	assert.Equal(t, labnote.Metadata{"k": "v"}, snaps[1].Metadata)
	assert.Equal(t, "a", snaps[2].Text)
	assert.Equal(t, "ab", snaps[3].Text)
	assert.Equal(t, labnote.StateCompleted, snaps[4].State)
	for i := 1; i < len(snaps); i++ {
		assert.Greater(t, snaps[i].Seq, snaps[i-1].Seq)
	}
}

func TestSession_ListenerMayReadSnapshot(t *testing.T) {
	t.Parallel()
	s := stream.New(staticTransport("data: {\"chunk\":\"a\"}\ndata: [DONE]\n"))
	var mu sync.Mutex
	var states []labnote.State
	s.Subscribe(func(labnote.Snapshot) {
		st := s.Snapshot().State
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	s.Start(context.Background(), testRequest)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []labnote.State{labnote.StateStreaming, labnote.StateStreaming, labnote.StateCompleted}, states)
}

func TestSession_Unsubscribe(t *testing.T) {
	t.Parallel()
	var rec recorder
	s := stream.New(staticTransport("data: [DONE]\n"))
	unsubscribe := s.Subscribe(rec.listen)
	unsubscribe()
	unsubscribe()

	s.Start(context.Background(), testRequest)

	assert.Empty(t, rec.get())
}

func TestSession_CompletionPanicPropagates(t *testing.T) {
	t.Parallel()
	s := stream.New(staticTransport("data: {\"chunk\":\"x\"}\ndata: [DONE]\n"),
		stream.WithCompletion(func(string, labnote.Metadata) { panic("caller bug") }))

	assert.PanicsWithValue(t, "caller bug", func() {
		s.Start(context.Background(), testRequest)
	})

	snap := s.Snapshot()
	assert.Equal(t, labnote.StateCompleted, snap.State)
	assert.Equal(t, "x", snap.Text)

	// The session stays usable.
	s.Reset()
	assert.Equal(t, labnote.StateIdle, s.Snapshot().State)
}
