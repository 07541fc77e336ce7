package goldmark

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/labnote/labnote"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// markdown parses CommonMark plus GFM tables, strikethrough and task lists,
// which models commonly emit.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type styles struct {
	bold      lipgloss.Style
	italic    lipgloss.Style
	strike    lipgloss.Style
	heading   lipgloss.Style
	title     lipgloss.Style
	muted     lipgloss.Style
	code      lipgloss.Style
	underline lipgloss.Style
	checked   lipgloss.Style
}

func newStyles(theme labnote.Theme) styles {
	heading := lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true)
	return styles{
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		strike:    lipgloss.NewStyle().Strikethrough(true),
		heading:   heading,
		title:     heading.Underline(true),
		muted:     lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
		code:      lipgloss.NewStyle().Bold(true).Background(ansiColor(theme.CodeBg)),
		underline: lipgloss.NewStyle().Underline(true),
		checked:   lipgloss.NewStyle().Foreground(ansiColor(theme.Success)),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

// walker renders one document.
type walker struct {
	styles *styles
	source []byte
}

func (w *walker) render(width int) string {
	doc := markdown.Parser().Parse(text.NewReader(w.source))
	var buf bytes.Buffer
	w.blocks(doc, width, &buf)
	return strings.TrimRight(buf.String(), "\n")
}

func (w *walker) blocks(node ast.Node, width int, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c, width, buf)
		if c.NextSibling() != nil {
			buf.WriteString("\n")
		}
	}
}

func (w *walker) block(node ast.Node, width int, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		buf.WriteString(wrap(w.inline(n), width))
		buf.WriteString("\n")

	case *ast.Heading:
		style := w.styles.heading
		if n.Level == 1 {
			style = w.styles.title
		}
		buf.WriteString(wrap(style.Render(w.inline(n)), width))
		buf.WriteString("\n")

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(w.source)); lang != "" {
			buf.WriteString(w.styles.muted.Render(lang))
			buf.WriteString("\n")
		}
		w.codeLines(n.Lines(), buf)

	case *ast.CodeBlock:
		w.codeLines(n.Lines(), buf)

	case *ast.Blockquote:
		var inner bytes.Buffer
		w.blocks(n, max(width-2, 10), &inner)
		gutter := w.styles.muted.Render("▎") + " "
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			buf.WriteString(gutter + line + "\n")
		}

	case *ast.List:
		w.list(n, width, buf, 0)

	case *east.Table:
		w.table(n, buf)

	case *ast.ThematicBreak:
		buf.WriteString(w.styles.muted.Render(strings.Repeat("─", min(width, 40))))
		buf.WriteString("\n")

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(w.source))
		}

	default:
		w.blocks(node, width, buf)
	}
}

func (w *walker) codeLines(lines *text.Segments, buf *bytes.Buffer) {
	gutter := w.styles.muted.Render("│") + " "
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.WriteString(gutter)
		buf.WriteString(strings.TrimRight(string(seg.Value(w.source)), "\n"))
		buf.WriteString("\n")
	}
}

func (w *walker) list(node *ast.List, width int, buf *bytes.Buffer, depth int) {
	n := node.Start
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		indent := strings.Repeat("  ", depth)
		marker := "- "
		if node.IsOrdered() {
			marker = strconv.Itoa(n) + ". "
			n++
		}

		var content bytes.Buffer
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				if content.Len() > 0 {
					content.WriteString("\n")
				}
				content.WriteString(w.inline(in))
			case *ast.List:
				if content.Len() > 0 {
					writeItem(buf, indent, marker, content.String(), width)
					content.Reset()
				}
				w.list(in, width, buf, depth+1)
				marker = strings.Repeat(" ", len(marker))
			default:
				w.block(ic, width, &content)
			}
		}
		if content.Len() > 0 {
			writeItem(buf, indent, marker, strings.TrimRight(content.String(), "\n"), width)
		}
	}
}

// writeItem writes a list item with continuation lines aligned under the
// first character after the marker.
func writeItem(buf *bytes.Buffer, indent, marker, content string, width int) {
	prefix := indent + marker
	continuation := strings.Repeat(" ", len(prefix))
	for i, line := range strings.Split(wrap(content, max(width-len(prefix), 10)), "\n") {
		if i == 0 {
			buf.WriteString(prefix + line + "\n")
		} else {
			buf.WriteString(continuation + line + "\n")
		}
	}
}

// table renders a GFM table with columns padded to their widest cell. Tables
// are not wrapped.
func (w *walker) table(node *east.Table, buf *bytes.Buffer) {
	var rows [][]string
	for r := node.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cell := w.inline(c)
			if _, header := r.(*east.TableHeader); header {
				cell = w.styles.bold.Render(cell)
			}
			cells = append(cells, cell)
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(node.Alignments))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	sep := " " + w.styles.muted.Render("│") + " "
	for ri, row := range rows {
		parts := make([]string, len(widths))
		for i := range widths {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			parts[i] = pad(cell, widths[i], node.Alignments[i])
		}
		buf.WriteString(strings.TrimRight(strings.Join(parts, sep), " "))
		buf.WriteString("\n")
		if ri == 0 {
			rules := make([]string, len(widths))
			for i, wd := range widths {
				rules[i] = strings.Repeat("─", wd)
			}
			buf.WriteString(w.styles.muted.Render(strings.Join(rules, "─┼─")))
			buf.WriteString("\n")
		}
	}
}

func pad(cell string, width int, align east.Alignment) string {
	gap := width - lipgloss.Width(cell)
	if gap <= 0 {
		return cell
	}
	switch align {
	case east.AlignRight:
		return strings.Repeat(" ", gap) + cell
	case east.AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + cell + strings.Repeat(" ", gap-left)
	default:
		return cell + strings.Repeat(" ", gap)
	}
}

// wrap word-wraps s to width. Lines are not padded.
func wrap(s string, width int) string {
	lines := strings.Split(lipgloss.NewStyle().Width(width).Render(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

// inline collects the styled inline text of a node's children.
func (w *walker) inline(node ast.Node) string {
	var buf bytes.Buffer
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.span(c, &buf)
	}
	return buf.String()
}

func (w *walker) span(node ast.Node, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(w.source))
		switch {
		case n.HardLineBreak():
			buf.WriteByte('\n')
		case n.SoftLineBreak():
			buf.WriteByte(' ')
		}

	case *ast.String:
		buf.Write(n.Value)

	case *ast.Emphasis:
		inner := w.inline(n)
		if n.Level == 1 {
			buf.WriteString(w.styles.italic.Render(inner))
		} else {
			buf.WriteString(w.styles.bold.Render(inner))
		}

	case *east.Strikethrough:
		buf.WriteString(w.styles.strike.Render(w.inline(n)))

	case *east.TaskCheckBox:
		if n.IsChecked {
			buf.WriteString(w.styles.checked.Render("[x]"))
		} else {
			buf.WriteString("[ ]")
		}
		// The parser consumes the space after the box.
		buf.WriteByte(' ')

	case *ast.CodeSpan:
		buf.WriteString(w.styles.code.Render(w.inline(n)))

	case *ast.Link:
		buf.WriteString(w.styles.underline.Render(w.inline(n)))
		buf.WriteString(" ")
		buf.WriteString(w.styles.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.AutoLink:
		buf.WriteString(w.styles.underline.Render(string(n.URL(w.source))))

	case *ast.Image:
		buf.WriteString(w.styles.underline.Render(w.inline(n)))
		buf.WriteString(" ")
		buf.WriteString(w.styles.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			buf.Write(seg.Value(w.source))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			w.span(c, buf)
		}
	}
}
