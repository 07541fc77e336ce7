package bubbletea

import "context"

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

// StatusLine exports statusLine for testing.
func StatusLine(m Model) string {
	return m.statusLine()
}

// Truncate exports truncate for testing.
func Truncate(s string, width int) string {
	return truncate(s, width)
}

// QuitOnDone exports quitOnDone for testing.
func QuitOnDone(ctx context.Context, quit func()) func() {
	return quitOnDone(ctx, quit)
}
