package main

import (
	"io"

	"github.com/labnote/labnote"
)

// printer writes the text of each run to w as it arrives.
type printer struct {
	w       io.Writer
	run     uint64
	written int
}

func (p *printer) listen(s labnote.Snapshot) {
	if s.Run != p.run {
		p.run, p.written = s.Run, 0
	}
	if len(s.Text) > p.written {
		io.WriteString(p.w, s.Text[p.written:])
		p.written = len(s.Text)
	}
}
