package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/labnote/labnote"
	"github.com/labnote/labnote/fs"
)

// parseNoteIDs parses a comma-separated list of note ids.
func parseNoteIDs(s string) ([]int, error) {
	var ids []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.Atoi(field)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid note id %q", field)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no note ids in %q", s)
	}
	return ids, nil
}

// gatherContent returns the text to send as request content. "-" reads
// stdin; a glob appends the matching note files.
func gatherContent(f flags, stdin io.Reader) (string, error) {
	content := f.content
	if content == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		content = string(data)
	}
	if f.glob != "" {
		dir := f.dir
		if dir == "" {
			dir = "."
		}
		notes, err := fs.CollectContent(dir, f.glob)
		if err != nil {
			return "", err
		}
		content = strings.Join(nonEmpty(content, notes), "\n\n")
	}
	return content, nil
}

// requestBuilder turns user input into requests for one invocation.
type requestBuilder struct {
	feature string
	model   string
	noteIDs []int
}

func newRequestBuilder(f flags, cfg config) (requestBuilder, error) {
	b := requestBuilder{feature: cfg.feature, model: cfg.model}
	if f.notes != "" {
		ids, err := parseNoteIDs(f.notes)
		if err != nil {
			return b, err
		}
		b.noteIDs = ids
	}
	return b, nil
}

// build returns the request for input: a cluster insight message when note
// ids were given, generation content otherwise.
func (b requestBuilder) build(input string) labnote.Request {
	var req labnote.Request
	if len(b.noteIDs) > 0 {
		req = labnote.ClusterInsightRequest(b.noteIDs, input)
	} else {
		req = labnote.GenerateRequest(b.feature, input)
	}
	req.Model = b.model
	return req
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
