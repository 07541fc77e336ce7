package labnote

import "fmt"

// Streaming endpoints exposed by the LabNote backend.
const (
	PathAIStream       = "/api/ai/stream"
	PathClusterInsight = "/api/search/clusters/insight"
)

// Request describes one streaming exchange. Exactly one of Feature (text
// generation) or NoteIDs (cluster insight) selects the kind of work; Content
// and Message carry the user input for each respectively.
type Request struct {
	Path    string // endpoint path, e.g. PathAIStream
	Feature string // e.g. "summarize", "expand", "translate"
	NoteIDs []int

	Content string
	Message string

	Model   string         // empty = backend default
	Options map[string]any // backend-defined, passed through as-is
}

// GenerateRequest returns a Request for AI text generation over content.
func GenerateRequest(feature, content string) Request {
	return Request{Path: PathAIStream, Feature: feature, Content: content}
}

// ClusterInsightRequest returns a Request asking for an analysis of a note
// cluster. An empty message asks for the default insight.
func ClusterInsightRequest(noteIDs []int, message string) Request {
	return Request{Path: PathClusterInsight, NoteIDs: noteIDs, Message: message}
}

// Validate checks universal constraints on Request.
// Transport implementations may apply additional validation.
func (r Request) Validate() error {
	if r.Path == "" {
		return fmt.Errorf("path is required: %w", ErrValidation)
	}
	if r.Feature == "" && len(r.NoteIDs) == 0 {
		return fmt.Errorf("feature or note ids required: %w", ErrValidation)
	}
	if r.Feature != "" && len(r.NoteIDs) > 0 {
		return fmt.Errorf("feature and note ids are mutually exclusive: %w", ErrValidation)
	}
	return nil
}
