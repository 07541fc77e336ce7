// Package http implements [labnote.Transport] over the LabNote REST API.
//
// Streaming endpoints accept a JSON POST and answer with a text/event-stream
// body, which is handed to the caller unread. Decoding is left to package sse.
package http

import "encoding/json"

const (
	contentTypeJSON   = "application/json"
	contentTypeStream = "text/event-stream"
	headerRequestID   = "X-Request-Id"
)

// apiRequest is the JSON body sent to a streaming endpoint.
type apiRequest struct {
	Feature string         `json:"feature,omitempty"`
	NoteIDs []int          `json:"note_ids,omitempty"`
	Content string         `json:"content,omitempty"`
	Message string         `json:"message,omitempty"`
	Model   string         `json:"model,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// apiErrorResponse is the JSON body returned on non-2xx responses. The backend
// uses "detail" for framework errors and "error" for its own.
type apiErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}
