package remap

import (
	"path/filepath"
)

// Rename is where a renamed source ended up.
type Rename struct {
	OutputPath string `json:"output_path"`
	Filename   string `json:"filename"`
}

// state is owned by exactly one Remap call and dropped when it returns.
type state struct {
	nameCounts    map[string]int
	contentByName map[string]string
	// Only renamed files are keyed here; unrenamed imports are never rewritten.
	pathMap map[string]Rename
}

func newState() *state {
	return &state{
		nameCounts:    make(map[string]int),
		contentByName: make(map[string]string),
		pathMap:       make(map[string]Rename),
	}
}

func (s *state) renames() map[string]Rename {
	out := make(map[string]Rename, len(s.pathMap))
	for k, v := range s.pathMap {
		out[k] = v
	}
	return out
}

// canonicalize resolves path to an absolute, symlink-free form. It fails when
// the path does not exist on disk.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// canonicalOrLiteral falls back to the path as written when it cannot be
// canonicalized.
func canonicalOrLiteral(path string) string {
	if c, err := canonicalize(path); err == nil {
		return c
	}
	return path
}
