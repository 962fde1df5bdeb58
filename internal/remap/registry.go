package remap

import (
	"fmt"
	"path/filepath"

	"remapper/internal/errors"
)

// outputDir is the temp directory placed inside the source's parent directory.
func (r *Remapper) outputDir(path string) string {
	return filepath.Join(filepath.Dir(path), r.tempDirectory)
}

// register creates the output directory for path and returns the output path
// for name. Renamed files are recorded under the canonical original path so
// later imports of them can be rewritten.
func (r *Remapper) register(st *state, path, name string, renamed bool) (string, error) {
	dir := r.outputDir(path)
	if err := r.fs.MkdirAll(dir, 0755); err != nil {
		return "", errors.IO(fmt.Sprintf("creating output directory %s", dir), err)
	}

	filename := name + "." + r.extension
	outputPath := filepath.Join(dir, filename)

	if renamed {
		st.pathMap[canonicalOrLiteral(path)] = Rename{
			OutputPath: outputPath,
			Filename:   filename,
		}
	}
	return outputPath, nil
}
