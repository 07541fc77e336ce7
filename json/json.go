// Package json persists finished stream runs as versioned JSON documents.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labnote/labnote"
)

const version = 1

// envelope is the v1 wire format for a persisted result.
type envelope struct {
	Version    int              `json:"version"`
	ID         string           `json:"id"`
	Request    requestDTO       `json:"request"`
	State      string           `json:"state"`
	Text       string           `json:"text"`
	Metadata   labnote.Metadata `json:"metadata,omitempty"`
	Error      *errorDTO        `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

type requestDTO struct {
	Path    string         `json:"path"`
	Feature string         `json:"feature,omitempty"`
	NoteIDs []int          `json:"note_ids,omitempty"`
	Content string         `json:"content,omitempty"`
	Message string         `json:"message,omitempty"`
	Model   string         `json:"model,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type errorDTO struct {
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// MarshalResult serializes a Result to JSON in v1 envelope format.
func MarshalResult(r labnote.Result) ([]byte, error) {
	env := envelope{
		Version: version,
		ID:      r.ID,
		Request: requestDTO{
			Path:    r.Request.Path,
			Feature: r.Request.Feature,
			NoteIDs: r.Request.NoteIDs,
			Content: r.Request.Content,
			Message: r.Request.Message,
			Model:   r.Request.Model,
			Options: r.Request.Options,
		},
		State:      r.State.String(),
		Text:       r.Text,
		Metadata:   r.Metadata,
		Error:      marshalError(r.Err),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalResult deserializes a Result from JSON in v1 envelope format.
// A persisted error comes back as a *labnote.Error with the original kind,
// status and message.
func UnmarshalResult(data []byte) (labnote.Result, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return labnote.Result{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != version {
		return labnote.Result{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	state, ok := labnote.ParseState(env.State)
	if !ok {
		return labnote.Result{}, fmt.Errorf("unknown state: %q", env.State)
	}
	var resultErr error
	if env.Error != nil {
		le, err := unmarshalError(*env.Error)
		if err != nil {
			return labnote.Result{}, err
		}
		resultErr = le
	}
	return labnote.Result{
		ID: env.ID,
		Request: labnote.Request{
			Path:    env.Request.Path,
			Feature: env.Request.Feature,
			NoteIDs: env.Request.NoteIDs,
			Content: env.Request.Content,
			Message: env.Request.Message,
			Model:   env.Request.Model,
			Options: env.Request.Options,
		},
		State:      state,
		Text:       env.Text,
		Metadata:   env.Metadata,
		Err:        resultErr,
		StartedAt:  env.StartedAt,
		FinishedAt: env.FinishedAt,
	}, nil
}

// Save writes a Result to a JSON file, creating parent directories as needed.
func Save(path string, r labnote.Result) error {
	data, err := MarshalResult(r)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Result from a JSON file.
func Load(path string) (labnote.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return labnote.Result{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalResult(data)
}

func marshalError(err error) *errorDTO {
	if err == nil {
		return nil
	}
	dto := &errorDTO{Kind: "unknown", Message: err.Error()}
	var le *labnote.Error
	if errors.As(err, &le) {
		dto.Kind = le.Kind.String()
		dto.Status = le.Status
	}
	return dto
}

func unmarshalError(dto errorDTO) (*labnote.Error, error) {
	le := &labnote.Error{Status: dto.Status, Message: dto.Message}
	switch dto.Kind {
	case "transport", "unknown":
		le.Kind = labnote.ErrorTransport
	case "protocol":
		le.Kind = labnote.ErrorProtocol
	default:
		return nil, fmt.Errorf("unknown error kind: %q", dto.Kind)
	}
	return le, nil
}
