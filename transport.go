package labnote

import (
	"context"
	"io"
)

// Transport issues a streaming request and returns the response body as an
// incrementally readable byte stream.
//
// Open blocks until response headers arrive. A non-success status, or any
// failure before streaming begins, is returned as an error. Cancellation flows
// through ctx: once ctx is done, pending and future reads of the body must
// return promptly.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}
