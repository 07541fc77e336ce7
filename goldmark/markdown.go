// Package goldmark renders generated markdown to ANSI-styled terminal output
// using goldmark for parsing and lipgloss for styling.
//
// Rendering tolerates incomplete documents, so the text of a run can be
// re-rendered after every chunk while it is still streaming.
package goldmark

import (
	"fmt"
	"strings"

	"github.com/labnote/labnote"
)

const defaultWidth = 80

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs, quotes and list items are word-wrapped to width. Code blocks
// are rendered without reflow.
func Render(source string, width int, theme labnote.Theme) string {
	return New(theme).Render(source, width)
}

// Renderer renders markdown with a fixed theme. It is safe for concurrent
// use.
type Renderer struct {
	styles styles
}

// New creates a Renderer for theme.
func New(theme labnote.Theme) *Renderer {
	return &Renderer{styles: newStyles(theme)}
}

// Render parses markdown source and returns ANSI-styled terminal output.
// A width of zero or less means 80 columns.
func (r *Renderer) Render(source string, width int) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	w := &walker{styles: &r.styles, source: []byte(source)}
	return w.render(width)
}

// Sources renders the notes a response was grounded on as a numbered
// footer. It returns "" when there are none.
func (r *Renderer) Sources(notes []labnote.NoteRef) string {
	if len(notes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(r.styles.muted.Render("Sources"))
	for i, n := range notes {
		title := n.Title
		if title == "" {
			title = fmt.Sprintf("note %d", n.ID)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d. %s", i+1, r.styles.bold.Render(title))
		if n.Notebook != "" {
			b.WriteString(" ")
			b.WriteString(r.styles.muted.Render("(" + n.Notebook + ")"))
		}
	}
	return b.String()
}
