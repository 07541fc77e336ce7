package sse

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/labnote/labnote"
)

// Interpreter classifies complete protocol lines into frames.
//
// An "event:" line names the next data line only. The name is consumed when a
// data line is paired with it and replaced if another "event:" line arrives
// first. Blank lines, comments and unknown fields are ignored and do not
// reset the pending name.
type Interpreter struct {
	event  string
	logger *slog.Logger
}

// NewInterpreter returns an Interpreter that logs ignored frames to logger.
// A nil logger uses slog.Default().
func NewInterpreter(logger *slog.Logger) *Interpreter {
	return &Interpreter{logger: logger}
}

// Pending returns the event name waiting for a data line, if any.
func (in *Interpreter) Pending() string {
	return in.event
}

// Interpret consumes one line. It returns ok=false for lines that do not
// produce a frame.
func (in *Interpreter) Interpret(line string) (labnote.Frame, bool) {
	switch {
	case strings.HasPrefix(line, fieldEvent):
		in.event = fieldValue(line, fieldEvent)
		return labnote.Frame{}, false
	case strings.HasPrefix(line, fieldData):
		event := in.event
		in.event = ""
		f := in.classify(event, fieldValue(line, fieldData))
		if f.Kind == labnote.FrameUnrecognized {
			in.log().Debug("ignoring unrecognized frame", "event", f.Event, "payload", f.Payload)
		}
		return f, true
	default:
		return labnote.Frame{}, false
	}
}

// Reset forgets any pending event name.
func (in *Interpreter) Reset() {
	in.event = ""
}

func (in *Interpreter) classify(event, payload string) labnote.Frame {
	f := labnote.Frame{Event: event, Payload: payload}

	switch {
	case event == labnote.EventMetadata:
		var md labnote.Metadata
		if err := json.Unmarshal([]byte(payload), &md); err != nil || md == nil {
			return f
		}
		f.Kind = labnote.FrameMetadata
		f.Metadata = md
		return f

	case event == labnote.EventError:
		// Raw text, never parsed.
		f.Kind = labnote.FrameError
		f.Message = payload
		return f

	case payload == labnote.Terminator:
		f.Kind = labnote.FrameTerminator
		return f
	}

	// Fields are decoded one at a time so a mistyped chunk cannot hide an
	// error field.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return f
	}
	if msg, ok := errorMessage(fields["error"]); ok {
		f.Kind = labnote.FrameError
		f.Message = msg
		return f
	}
	if raw, ok := fields["chunk"]; ok {
		var text *string
		if err := json.Unmarshal(raw, &text); err != nil || text == nil {
			return f
		}
		f.Kind = labnote.FrameChunk
		f.Text = *text
	}
	return f
}

// errorMessage extracts the message of a JSON "error" field. Absent and falsy
// values (null, false, 0, "") do not count as errors; other non-string values
// are reported as their raw JSON text.
func errorMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw), true
	}
	switch v := v.(type) {
	case nil:
		return "", false
	case bool:
		if !v {
			return "", false
		}
	case float64:
		if v == 0 {
			return "", false
		}
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	}
	return string(raw), true
}

func (in *Interpreter) log() *slog.Logger {
	if in.logger == nil {
		return slog.Default()
	}
	return in.logger
}
