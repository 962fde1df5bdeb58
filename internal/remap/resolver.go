package remap

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"remapper/internal/errors"
)

// fileStem returns the file name without its final extension. A leading dot
// does not start an extension, so ".env" keeps its whole name.
func fileStem(path string) string {
	name := filepath.Base(path)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name
	}
	return name[:i]
}

// resolveName decides the final base name for a source. Content identity,
// not path identity, decides whether two same-named files collide.
func (s *state) resolveName(path, content string) (string, bool, error) {
	base := fileStem(path)
	if base == "" {
		return "", false, errors.InvalidPath(path, "no file stem")
	}
	if !utf8.ValidString(base) {
		return "", false, errors.InvalidPath(path, "file stem is not valid UTF-8")
	}

	existing, seen := s.contentByName[base]
	if !seen {
		s.contentByName[base] = content
		return base, false, nil
	}
	if existing == content {
		return base, false, nil
	}

	s.nameCounts[base]++
	return fmt.Sprintf("%s_%d", base, s.nameCounts[base]), true, nil
}
