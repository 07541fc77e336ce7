package labnote

// FrameKind classifies a protocol frame.
type FrameKind int

const (
	FrameUnrecognized FrameKind = iota // Parsed or not, matches no known shape. Ignored.
	FrameChunk                         // Carries text appended to the output.
	FrameMetadata                      // Carries a record merged into session metadata.
	FrameError                         // Backend-reported failure. Terminal.
	FrameTerminator                    // The [DONE] sentinel. Terminal.
)

// String returns the lowercase name of the frame kind.
func (k FrameKind) String() string {
	switch k {
	case FrameChunk:
		return "chunk"
	case FrameMetadata:
		return "metadata"
	case FrameError:
		return "error"
	case FrameTerminator:
		return "terminator"
	default:
		return "unrecognized"
	}
}

// Terminator is the literal data payload that ends a stream.
const Terminator = "[DONE]"

// Event names with special meaning on the wire.
const (
	EventMetadata = "metadata"
	EventError    = "error"
)

// Frame is one classified unit of the streaming protocol, derived from a
// single data line and the event name paired with it. Frames are transient:
// they have no identity beyond their position in the stream.
type Frame struct {
	Kind    FrameKind
	Event   string // paired event name, empty for untyped data lines
	Payload string // raw data payload

	Text     string   // FrameChunk
	Message  string   // FrameError
	Metadata Metadata // FrameMetadata
}

// Terminal reports whether the frame ends the stream.
func (f Frame) Terminal() bool {
	return f.Kind == FrameError || f.Kind == FrameTerminator
}
