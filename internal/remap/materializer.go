package remap

import (
	"fmt"
	"os"

	"remapper/internal/errors"

	"github.com/spf13/afero"
)

// Materializer writes flattened sources. A failed write is not retried and
// nothing already written is rolled back.
type Materializer struct {
	fs   afero.Fs
	perm os.FileMode
}

func NewMaterializer(fs afero.Fs) *Materializer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Materializer{fs: fs, perm: 0644}
}

// Write creates or truncates path and writes content to it.
func (m *Materializer) Write(path, content string) error {
	if err := afero.WriteFile(m.fs, path, []byte(content), m.perm); err != nil {
		return errors.IO(fmt.Sprintf("writing %s", path), err)
	}
	return nil
}
