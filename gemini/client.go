package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/labnote/labnote"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ labnote.Transport = (*Client)(nil)

// streamFunc matches genai's Models.GenerateContentStream.
type streamFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// Client implements [labnote.Transport] for the Google Gemini API.
type Client struct {
	stream streamFunc
	model  string
	logger *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the default model ID. Default is gemini-2.5-flash.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return newClient(gc.Models.GenerateContentStream, opts...), nil
}

func newClient(fn streamFunc, opts ...Option) *Client {
	c := &Client{
		stream: fn,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Open starts a generation for req and returns its output encoded as a
// LabNote event stream. Only text features are supported: cluster insight
// needs note contents that live in the LabNote backend.
func (c *Client) Open(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
	if len(req.NoteIDs) > 0 {
		return nil, fmt.Errorf("gemini: cluster insight requires the LabNote backend: %w", labnote.ErrValidation)
	}
	if req.Feature == "" {
		return nil, fmt.Errorf("gemini: feature is required: %w", labnote.ErrValidation)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Content}},
	}}
	seq := c.stream(ctx, model, contents, buildConfig(req))

	pr, pw := io.Pipe()
	go c.pump(pw, model, seq)
	return pr, nil
}

// pump writes the generation as protocol lines until the iterator ends or the
// reader goes away.
func (c *Client) pump(pw *io.PipeWriter, model string, seq iter.Seq2[*genai.GenerateContentResponse, error]) {
	w := &frameWriter{w: pw}
	defer func() { pw.CloseWithError(w.err) }()

	w.event(labnote.EventMetadata, mustJSON(map[string]any{"provider": provider, "model": model}))
	var usage *genai.GenerateContentResponseUsageMetadata
	for resp, err := range seq {
		if err != nil {
			c.logger.Warn("gemini stream failed", "model", model, "error", err)
			w.event(labnote.EventError, oneLine(err.Error()))
			return
		}
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}
		if text := responseText(resp); text != "" {
			w.data(mustJSON(map[string]string{"chunk": text}))
		}
		if w.err != nil {
			return
		}
	}
	if usage != nil {
		w.event(labnote.EventMetadata, mustJSON(map[string]any{
			"prompt_tokens": usage.PromptTokenCount,
			"output_tokens": usage.CandidatesTokenCount,
		}))
	}
	w.data(labnote.Terminator)
}

// responseText returns the visible text of the first candidate. Thought parts
// are skipped.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func buildConfig(req labnote.Request) *genai.GenerateContentConfig {
	prompt, ok := featurePrompts[req.Feature]
	if !ok {
		prompt = fmt.Sprintf(fallbackPrompt, req.Feature)
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	if t, ok := req.Options["temperature"].(float64); ok {
		temp := float32(t)
		config.Temperature = &temp
	}
	if n, ok := req.Options["max_tokens"].(float64); ok && n > 0 {
		config.MaxOutputTokens = int32(n)
	}
	return config
}

// frameWriter writes protocol lines and remembers the first write error.
type frameWriter struct {
	w   io.Writer
	err error
}

func (f *frameWriter) event(name, payload string) {
	f.write("event: " + name + "\ndata: " + payload + "\n\n")
}

func (f *frameWriter) data(payload string) {
	f.write("data: " + payload + "\n\n")
}

func (f *frameWriter) write(s string) {
	if f.err != nil {
		return
	}
	_, f.err = io.WriteString(f.w, s)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// oneLine keeps an error message on a single protocol line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
