// Package bundle models the ordered set of source files submitted for one
// remap run.
package bundle

import (
	"fmt"
	"path/filepath"
)

// SourceFile is one input file. It is never mutated by the remapper.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Entry is a source in bundle order, with its main-file status.
type Entry struct {
	Source SourceFile
	IsMain bool
}

// Bundle keeps sources in insertion order so rename counters are reproducible
// across runs.
type Bundle struct {
	Main    string
	order   []string
	sources map[string]SourceFile
}

func New(main string) *Bundle {
	return &Bundle{
		Main:    main,
		sources: make(map[string]SourceFile),
	}
}

// Add appends a source. Re-adding a path replaces its content and keeps its
// original position.
func (b *Bundle) Add(path, content string) {
	if _, exists := b.sources[path]; !exists {
		b.order = append(b.order, path)
	}
	b.sources[path] = SourceFile{Path: path, Content: content}
}

func (b *Bundle) Get(path string) (SourceFile, bool) {
	s, ok := b.sources[path]
	return s, ok
}

func (b *Bundle) Len() int {
	return len(b.order)
}

// Paths returns source paths in bundle order.
func (b *Bundle) Paths() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Entries returns every source in bundle order.
func (b *Bundle) Entries() []Entry {
	entries := make([]Entry, 0, len(b.order))
	for _, path := range b.order {
		entries = append(entries, Entry{
			Source: b.sources[path],
			IsMain: path == b.Main,
		})
	}
	return entries
}

// ResolvePaths returns a copy of the bundle with every relative path (and the
// main path) joined onto base. Absolute paths are kept as they are.
func (b *Bundle) ResolvePaths(base string) (*Bundle, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolving base directory: %w", err)
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(absBase, filepath.FromSlash(p))
	}

	out := New(resolve(b.Main))
	for _, path := range b.order {
		out.Add(resolve(path), b.sources[path].Content)
	}
	return out, nil
}
