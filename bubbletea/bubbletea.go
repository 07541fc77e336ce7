// Package bubbletea provides a Bubble Tea viewer for LabNote AI streams.
//
// The viewer drives one [stream.Session]: the prompt input becomes a request,
// session snapshots are rendered as markdown while they arrive, and the
// status line reports the run's state.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/labnote/labnote"
	"github.com/labnote/labnote/stream"
)

// RequestFunc builds the request for text typed into the prompt.
type RequestFunc func(input string) labnote.Request

// Run creates and runs the Bubble Tea program. It blocks until the program
// exits. When ctx is cancelled the program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	stop := quitOnDone(ctx, p.Quit)
	defer stop()
	_, err := p.Run()
	return err
}

// quitOnDone calls quit when ctx is cancelled. The returned stop function ends
// the watch and returns once the watching goroutine has exited.
func quitOnDone(ctx context.Context, quit func()) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			quit()
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

// SnapshotMsg delivers a session snapshot to the model.
type SnapshotMsg struct {
	Snapshot labnote.Snapshot
}

// DoneMsg signals that a run's Start call returned.
type DoneMsg struct{}

// feed hands snapshots from session listeners to the program. It holds at
// most one snapshot; a newer one replaces an unread older one, so a slow
// render never blocks the session.
type feed struct {
	ch chan labnote.Snapshot
}

func subscribe(s *stream.Session) *feed {
	f := &feed{ch: make(chan labnote.Snapshot, 1)}
	s.Subscribe(f.push)
	return f
}

func (f *feed) push(snap labnote.Snapshot) {
	for {
		select {
		case f.ch <- snap:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// wait returns a command that delivers the next snapshot.
func (f *feed) wait() tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: <-f.ch}
	}
}

// start runs req on the session and reports when Start returns.
func start(s *stream.Session, req labnote.Request) tea.Cmd {
	return func() tea.Msg {
		s.Start(context.Background(), req)
		return DoneMsg{}
	}
}
