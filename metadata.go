package labnote

import "maps"

// Metadata is the backend-defined record carried by metadata frames.
//
// Multiple metadata frames in one stream are merged: later keys overwrite
// earlier ones. Nested values are not merged recursively.
type Metadata map[string]any

// Merge copies every key of other into m and returns m. A nil m is allocated.
func (m Metadata) Merge(other Metadata) Metadata {
	if len(other) == 0 {
		return m
	}
	if m == nil {
		m = make(Metadata, len(other))
	}
	maps.Copy(m, other)
	return m
}

// Clone returns a shallow copy of m. Returns nil for an empty m.
func (m Metadata) Clone() Metadata {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}

// NoteRef identifies a note referenced by a stream, as carried in the
// metadata "notes" array.
type NoteRef struct {
	ID       int
	Title    string
	Notebook string
}

// Notes decodes the "notes" array. Entries that are not objects are skipped;
// missing or mistyped fields are left at their zero value.
func (m Metadata) Notes() []NoteRef {
	raw, ok := m["notes"].([]any)
	if !ok {
		return nil
	}
	notes := make([]NoteRef, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var n NoteRef
		// encoding/json decodes numbers as float64.
		if id, ok := obj["id"].(float64); ok {
			n.ID = int(id)
		}
		n.Title, _ = obj["title"].(string)
		n.Notebook, _ = obj["notebook"].(string)
		notes = append(notes, n)
	}
	return notes
}
