// Package fs collects local note files to use as request content.
package fs

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/labnote/labnote"
)

// DefaultMaxBytes limits the combined size of collected notes.
const DefaultMaxBytes = 256 * 1024

// ErrNoMatches indicates a pattern matched no files.
var ErrNoMatches = errors.New("no matching notes")

// Note is a local note file.
type Note struct {
	Path    string // relative to the collection root, OS separators
	Content string
}

// Option configures Collect.
type Option func(*options)

type options struct {
	maxBytes int
}

// WithMaxBytes sets the size limit for the combined content. Zero or less
// disables the limit.
func WithMaxBytes(n int) Option {
	return func(o *options) { o.maxBytes = n }
}

// Collect reads every regular file under dir matching pattern. Patterns use
// doublestar syntax, so **/*.md matches recursively. Notes are returned in
// walk order, which is lexical.
func Collect(dir, pattern string, opts ...Option) ([]Note, error) {
	o := options{maxBytes: DefaultMaxBytes}
	for _, fn := range opts {
		fn(&o)
	}

	if pattern == "" {
		return nil, fmt.Errorf("fs: pattern is required: %w", labnote.ErrValidation)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("fs: invalid glob pattern %q: %w", pattern, labnote.ErrValidation)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fs: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fs: %s is not a directory", dir)
	}

	fsys := os.DirFS(dir)
	var (
		notes []Note
		total int
	)
	err = doublestar.GlobWalk(fsys, pattern, func(path string, d iofs.DirEntry) error {
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := iofs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		total += len(data)
		if o.maxBytes > 0 && total > o.maxBytes {
			return fmt.Errorf("notes exceed %d bytes at %s", o.maxBytes, path)
		}
		notes = append(notes, Note{Path: filepath.FromSlash(path), Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fs: %w", err)
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("fs: %s in %s: %w", pattern, dir, ErrNoMatches)
	}
	return notes, nil
}

// Join renders notes as one markdown document, each under a heading naming
// its file.
func Join(notes []Note) string {
	var b strings.Builder
	for i, n := range notes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(n.Path)
		b.WriteString("\n\n")
		b.WriteString(strings.TrimRight(n.Content, "\n"))
	}
	return b.String()
}

// CollectContent collects notes under dir and joins them into request
// content.
func CollectContent(dir, pattern string, opts ...Option) (string, error) {
	notes, err := Collect(dir, pattern, opts...)
	if err != nil {
		return "", err
	}
	return Join(notes), nil
}
