package gemini

import (
	"context"
	"iter"

	"google.golang.org/genai"
)

// StreamFunc exports streamFunc for testing.
type StreamFunc = func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// NewWithStream creates a Client backed by fn instead of the SDK.
func NewWithStream(fn StreamFunc, opts ...Option) *Client {
	return newClient(fn, opts...)
}
