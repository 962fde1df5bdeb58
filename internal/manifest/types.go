package manifest

import (
	"time"

	"remapper/internal/remap"
)

// FileRecord is one flattened source of a recorded run. Hashes point into
// the content safe.
type FileRecord struct {
	OriginalPath string `json:"original_path"`
	OutputPath   string `json:"output_path"`
	Name         string `json:"name"`
	Renamed      bool   `json:"renamed"`
	IsMain       bool   `json:"is_main"`
	OriginalHash string `json:"original_hash"`
	OutputHash   string `json:"output_hash"`
}

// Run is the persisted outcome of one successful remap. Remappings and
// ProjectPaths are the passthrough settings the run used.
type Run struct {
	ID            string                  `json:"id"`
	Main          string                  `json:"main"`
	TempDirectory string                  `json:"temp_directory"`
	CreatedAt     time.Time               `json:"created_at"`
	Files         []FileRecord            `json:"files"`
	Renames       map[string]remap.Rename `json:"renames"`
	Remappings    []string                `json:"remappings,omitempty"`
	ProjectPaths  map[string]string       `json:"project_paths,omitempty"`
}

func (r *Run) GetID() string {
	return r.ID
}

// RenamedCount returns how many files were renamed in the run.
func (r *Run) RenamedCount() int {
	n := 0
	for _, f := range r.Files {
		if f.Renamed {
			n++
		}
	}
	return n
}
