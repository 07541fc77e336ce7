package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labnote/labnote"
)

// Interface compliance check.
var _ labnote.Transport = (*Client)(nil)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Client implements [labnote.Transport] for the LabNote backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request. An empty token
// sends no Authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a new [Client] for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Open posts req to its endpoint and returns the event-stream body once
// response headers arrive. The body is bound to ctx: cancelling ctx makes
// pending reads fail promptly.
func (c *Client) Open(ctx context.Context, req labnote.Request) (io.ReadCloser, error) {
	body, err := json.Marshal(apiRequest{
		Feature: req.Feature,
		NoteIDs: req.NoteIDs,
		Content: req.Content,
		Message: req.Message,
		Model:   req.Model,
		Options: req.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+req.Path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	id := uuid.NewString()
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeStream)
	httpReq.Header.Set(headerRequestID, id)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("opening stream", "path", req.Path, "request_id", id)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, contentTypeStream) {
		c.logger.Warn("unexpected stream content type", "content_type", ct, "request_id", id)
	}
	return resp.Body, nil
}

// parseHTTPError builds the failure for a non-2xx response, preferring the
// backend's own message over the raw body.
func parseHTTPError(resp *http.Response) error {
	e := &labnote.Error{
		Kind:   labnote.ErrorTransport,
		Status: resp.StatusCode,
		Err:    labnote.ErrUnexpectedStatus,
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		e.Message = fmt.Sprintf("http: %s (failed to read body: %v)", resp.Status, err)
		return e
	}
	e.Message = fmt.Sprintf("http: %s", resp.Status)
	if msg := errorMessage(body); msg != "" {
		e.Message += ": " + msg
	}
	return e
}

func errorMessage(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return strings.TrimSpace(string(body))
	}
	if apiErr.Error != "" {
		return apiErr.Error
	}
	if len(apiErr.Detail) > 0 {
		var s string
		if err := json.Unmarshal(apiErr.Detail, &s); err == nil {
			return s
		}
		return string(apiErr.Detail)
	}
	return ""
}
