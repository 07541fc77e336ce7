// Package sse decodes the LabNote streaming protocol: server-sent-event
// shaped lines carried in an ordinary HTTP response body.
//
// Decoding happens in two steps. A [Reassembler] turns arbitrarily split
// fragments into complete lines, and an [Interpreter] classifies each line
// into a [labnote.Frame]. [Reader] combines both behind a pull-based Next
// method.
package sse

const (
	fieldEvent = "event:"
	fieldData  = "data:"
)

// fieldValue strips a field prefix and the single optional space after it.
func fieldValue(line, prefix string) string {
	v := line[len(prefix):]
	if len(v) > 0 && v[0] == ' ' {
		v = v[1:]
	}
	return v
}
