package sse

import "strings"

// Reassembler converts a sequence of text fragments, split at arbitrary
// boundaries, into complete newline-terminated lines.
//
// The trailing segment after the last newline is retained and prefixed to the
// next fragment. There is no line length limit: a backend that never sends a
// newline grows the buffer without bound.
type Reassembler struct {
	pending []byte
}

// Feed appends fragment to the buffer and returns every line completed by it,
// in order, without their terminators. A trailing "\r" is stripped so CRLF
// framing decodes the same as LF.
//
// Each call scans only fragment; the buffered prefix is never rescanned or
// copied until a newline completes it.
func (r *Reassembler) Feed(fragment string) []string {
	first := strings.IndexByte(fragment, '\n')
	if first < 0 {
		r.pending = append(r.pending, fragment...)
		return nil
	}
	last := strings.LastIndexByte(fragment, '\n')

	lines := []string{trimCR(string(r.pending) + fragment[:first])}
	if last > first {
		for _, line := range strings.Split(fragment[first+1:last], "\n") {
			lines = append(lines, trimCR(line))
		}
	}
	r.pending = append(r.pending[:0], fragment[last+1:]...)
	return lines
}

// Buffered returns the number of bytes held back waiting for a newline.
func (r *Reassembler) Buffered() int {
	return len(r.pending)
}

// Reset discards any partial line.
func (r *Reassembler) Reset() {
	r.pending = nil
}

func trimCR(line string) string {
	return strings.TrimSuffix(line, "\r")
}
