// Package gemini implements [labnote.Transport] on top of the Google Gemini
// API, for running LabNote features without a LabNote backend.
//
// It wraps the google.golang.org/genai SDK and re-encodes the SDK's streaming
// iterator as the LabNote wire protocol, so the response body decodes exactly
// like one served by the backend.
package gemini

const (
	defaultModel = "gemini-2.5-flash"
	provider     = "gemini"
)

// featurePrompts holds the system instruction for each text feature.
var featurePrompts = map[string]string{
	"summarize": "Summarize the following research note in a few short paragraphs. Keep units, reagents and sample identifiers exact.",
	"expand":    "Expand the following research note into complete prose, preserving every fact it states.",
	"improve":   "Improve the clarity and structure of the following research note without changing its meaning.",
	"translate": "Translate the following research note into English, keeping markdown formatting intact.",
	"keywords":  "List the key concepts of the following research note as a markdown bullet list.",
}

const fallbackPrompt = "Apply the %q operation to the following research note. Answer in markdown."
