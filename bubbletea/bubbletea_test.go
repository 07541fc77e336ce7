package bubbletea_test

import (
	"context"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/labnote/labnote"
	bt "github.com/labnote/labnote/bubbletea"
	"github.com/labnote/labnote/mock"
	"github.com/labnote/labnote/stream"
	"github.com/stretchr/testify/require"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func generate(input string) labnote.Request {
	return labnote.GenerateRequest("summarize", input)
}

// bodyTransport serves body for every Open call and records the requests.
type bodyTransport struct {
	body string

	mu   sync.Mutex
	reqs []labnote.Request
}

func (b *bodyTransport) transport() *mock.Transport {
	return &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			b.mu.Lock()
			b.reqs = append(b.reqs, req)
			b.mu.Unlock()
			return io.NopCloser(strings.NewReader(b.body)), nil
		},
	}
}

func (b *bodyTransport) requests() []labnote.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]labnote.Request(nil), b.reqs...)
}

// stalledTransport returns bodies whose reads block until closed.
func stalledTransport() *mock.Transport {
	return &mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			closed := make(chan struct{})
			var once sync.Once
			return &mock.Body{
				ReadFn: func(p []byte) (int, error) {
					<-closed
					return 0, io.ErrClosedPipe
				},
				CloseFn: func() error {
					once.Do(func() { close(closed) })
					return nil
				},
			}, nil
		},
	}
}

// initModel creates a viewer over s and sends a WindowSizeMsg to initialize
// the viewport.
func initModel(t *testing.T, s *stream.Session) bt.Model {
	t.Helper()
	return initModelWithSize(t, s, 80, 24)
}

func initModelWithSize(t *testing.T, s *stream.Session, width, height int) bt.Model {
	t.Helper()
	m := bt.New(s, generate, labnote.DefaultTheme(), "")
	return updateModel(t, m, tea.WindowSizeMsg{Width: width, Height: height})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

func idleSession() *stream.Session {
	return stream.New(&mock.Transport{
		OpenFn: func(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("")), nil
		},
	})
}
