package sse

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/labnote/labnote"
)

const readBufferSize = 4096

// Reader pulls frames from a byte stream.
//
// Next returns frames strictly in arrival order, including unrecognized ones,
// and io.EOF once the stream ends. A partial line left in the buffer at end
// of input is discarded: the protocol only carries meaning on complete lines.
type Reader struct {
	src     io.Reader
	buf     []byte
	asm     Reassembler
	interp  *Interpreter
	lines   []string
	err     error // sticky read error, io.EOF at normal end
	dropped int   // bytes discarded at end of input
}

// ReaderOption configures a [Reader].
type ReaderOption func(*Reader)

// WithLogger sets the logger that receives ignored-frame diagnostics.
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) { r.interp.logger = logger }
}

// WithBufferSize sets the size of the read buffer. Values below 1 are ignored.
func WithBufferSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.buf = make([]byte, n)
		}
	}
}

// NewReader returns a Reader decoding frames from src.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:    src,
		buf:    make([]byte, readBufferSize),
		interp: NewInterpreter(nil),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Next returns the next frame. Read errors other than io.EOF are wrapped and
// repeated on every later call.
func (r *Reader) Next() (labnote.Frame, error) {
	for {
		for len(r.lines) > 0 {
			line := r.lines[0]
			r.lines = r.lines[1:]
			if f, ok := r.interp.Interpret(line); ok {
				return f, nil
			}
		}
		if r.err != nil {
			return labnote.Frame{}, r.err
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.lines = r.asm.Feed(string(r.buf[:n]))
		}
		if err != nil {
			r.finish(err)
		}
	}
}

// Dropped returns the number of trailing bytes discarded because the stream
// ended without a final newline.
func (r *Reader) Dropped() int {
	return r.dropped
}

func (r *Reader) finish(err error) {
	r.dropped = r.asm.Buffered()
	r.asm.Reset()
	if r.dropped > 0 {
		r.interp.log().Debug("discarding partial line at end of input", "bytes", r.dropped)
	}
	if errors.Is(err, io.EOF) {
		r.err = io.EOF
		return
	}
	r.err = fmt.Errorf("sse: %w", err)
}
