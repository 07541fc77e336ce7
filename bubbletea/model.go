package bubbletea

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/labnote/labnote"
	"github.com/labnote/labnote/goldmark"
	"github.com/labnote/labnote/stream"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the stream viewer.
type Model struct {
	// Input is the prompt. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model
	// Spinner animates the status line while a run is streaming.
	Spinner spinner.Model

	session  *stream.Session
	request  RequestFunc
	feed     *feed
	renderer *goldmark.Renderer
	styles   Styles

	snap    labnote.Snapshot
	prompt  string // input of the current run
	running bool   // Start has been called and has not returned
	ready   bool
}

// New creates a viewer for session. request turns prompt input into the
// request to run. An initial input, when non-empty, is placed in the prompt.
func New(session *stream.Session, request RequestFunc, theme labnote.Theme, initial string) Model {
	styles := NewStyles(theme)

	ti := textinput.New()
	ti.Placeholder = "Describe what to generate..."
	ti.Prompt = styles.Prompt.Render("> ")
	ti.CharLimit = 0
	ti.SetValue(initial)
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.Accent

	return Model{
		Input:    ti,
		Spinner:  sp,
		session:  session,
		request:  request,
		feed:     subscribe(session),
		renderer: goldmark.New(theme),
		styles:   styles,
		snap:     session.Snapshot(),
	}
}

// Running reports whether a run is in flight.
func (m Model) Running() bool { return m.running }

// Snapshot returns the last snapshot the model rendered.
func (m Model) Snapshot() labnote.Snapshot { return m.snap }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.feed.wait())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		m.snap = msg.Snapshot
		m.refresh()
		return m, m.feed.wait()

	case DoneMsg:
		m.running = false
		return m, m.Input.Focus()

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	const (
		inputHeight  = 1
		statusHeight = 1
		borderHeight = 2 // newlines between sections
	)
	vpHeight := max(msg.Height-inputHeight-statusHeight-borderHeight, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = msg.Width
	m.refresh()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.snap.Streaming() {
			m.session.Stop()
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEsc:
		m.session.Stop()
		return m, nil

	case tea.KeyCtrlR:
		m.session.Reset()
		m.prompt = ""
		return m, nil

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submit(text)
	}

	if m.running {
		var cmd tea.Cmd
		m.Viewport, cmd = m.Viewport.Update(msg)
		return m, cmd
	}

	// Character keys go to the prompt only; 'j' and 'k' are viewport keys too.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if msg.Type != tea.KeyRunes {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.prompt = text
	m.running = true
	return m, tea.Batch(
		start(m.session, m.request(text)),
		m.Spinner.Tick,
	)
}

// refresh re-renders the viewport from the current snapshot.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.renderContent())
	if m.snap.Streaming() {
		m.Viewport.GotoBottom()
	}
}

func (m Model) renderContent() string {
	var parts []string
	if m.prompt != "" {
		parts = append(parts, m.styles.Prompt.Render("> ")+m.prompt)
	}
	if m.snap.Text != "" {
		parts = append(parts, m.renderer.Render(m.snap.Text, m.Viewport.Width))
	}
	if m.snap.State.Terminal() {
		if sources := m.renderer.Sources(m.snap.Metadata.Notes()); sources != "" {
			parts = append(parts, sources)
		}
	}
	return strings.Join(parts, "\n\n")
}

// statusLine describes the session state in a single line no wider than the
// viewport.
func (m Model) statusLine() string {
	width := m.Viewport.Width
	switch m.snap.State {
	case labnote.StateStreaming:
		prefix := m.Spinner.View() + " "
		text := fmt.Sprintf("Generating... %d chars. Ctrl+C to stop", runewidth.StringWidth(m.snap.Text))
		return prefix + m.styles.Muted.Render(truncate(text, width-runewidth.StringWidth(m.Spinner.Spinner.Frames[0])-1))
	case labnote.StateCompleted:
		text := "Done"
		if model, ok := m.snap.Metadata["model"].(string); ok && model != "" {
			text += " (" + model + ")"
		}
		return m.styles.Success.Render(truncate(text+". Enter to run again, Ctrl+R to reset", width))
	case labnote.StateErrored:
		return m.styles.Error.Render(truncate(fmt.Sprintf("Error: %v", m.snap.Err), width))
	case labnote.StateAborted:
		return m.styles.Warning.Render(truncate("Stopped. Enter to run again, Ctrl+R to reset", width))
	default:
		return m.styles.Muted.Render(truncate("Enter to send, Ctrl+C to quit", width))
	}
}

// truncate cuts s to width terminal cells, marking the cut with an ellipsis.
// Newlines are flattened first so the status stays on one line.
func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
