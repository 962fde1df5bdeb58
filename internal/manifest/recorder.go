package manifest

import (
	"fmt"
	"path/filepath"

	"remapper/internal/bundle"
	"remapper/internal/remap"
	"remapper/internal/safe"

	"go.uber.org/zap"
)

// Recorder archives the inputs and outputs of successful runs.
type Recorder struct {
	box    Box
	safe   *safe.Safe
	logger *zap.Logger
}

func NewRecorder(box Box, s *safe.Safe, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{box: box, safe: s, logger: logger}
}

// Record stores every original and flattened source in the safe and persists
// the run. Failed runs are never recorded, and any content archived before
// the failure is released again.
func (r *Recorder) Record(b *bundle.Bundle, result *remap.Result) (_ *Run, err error) {
	run := &Run{
		Main:          b.Main,
		TempDirectory: result.TempDirectory,
		Files:         make([]FileRecord, 0, len(result.Files)),
		Renames:       result.Renames,
		Remappings:    result.Remappings,
		ProjectPaths:  result.ProjectPaths,
	}

	var stored []string
	defer func() {
		if err != nil {
			r.release(run.ID, stored)
		}
	}()

	archive := func(name string, content []byte) (string, error) {
		hash, err := r.safe.Store(name, content)
		if err != nil {
			return "", err
		}
		stored = append(stored, hash)
		return hash, nil
	}

	for _, f := range result.Files {
		src, ok := b.Get(f.OriginalPath)
		if !ok {
			return nil, fmt.Errorf("source %s missing from bundle", f.OriginalPath)
		}

		origHash, err := archive(filepath.Base(f.OriginalPath), []byte(src.Content))
		if err != nil {
			return nil, fmt.Errorf("archiving %s: %w", f.OriginalPath, err)
		}
		outHash, err := archive(filepath.Base(f.OutputPath), []byte(f.Content))
		if err != nil {
			return nil, fmt.Errorf("archiving %s: %w", f.OutputPath, err)
		}

		run.Files = append(run.Files, FileRecord{
			OriginalPath: f.OriginalPath,
			OutputPath:   f.OutputPath,
			Name:         f.Name,
			Renamed:      f.Renamed,
			IsMain:       f.IsMain,
			OriginalHash: origHash,
			OutputHash:   outHash,
		})
	}

	if err := r.box.Create(run); err != nil {
		return nil, err
	}

	r.logger.Info("recorded remap run",
		zap.String("run_id", run.ID),
		zap.Int("files", len(run.Files)),
		zap.Int("renamed", run.RenamedCount()))
	return run, nil
}

// release drops one safe reference per hash. Failures are logged because the
// caller is already reporting an error or has removed the run.
func (r *Recorder) release(runID string, hashes []string) {
	for _, hash := range hashes {
		if err := r.safe.Delete(hash); err != nil {
			r.logger.Warn("releasing archived content",
				zap.String("run_id", runID),
				zap.String("hash", hash),
				zap.Error(err))
		}
	}
}

// Contents returns the archived original and flattened text of one file.
func (r *Recorder) Contents(f FileRecord) (original, output []byte, err error) {
	original, err = r.safe.Get(f.OriginalHash)
	if err != nil {
		return nil, nil, fmt.Errorf("loading original %s: %w", f.OriginalPath, err)
	}
	output, err = r.safe.Get(f.OutputHash)
	if err != nil {
		return nil, nil, fmt.Errorf("loading output %s: %w", f.OutputPath, err)
	}
	return original, output, nil
}

// Delete removes a run and releases its archived content.
func (r *Recorder) Delete(id string) error {
	run, err := r.box.Get(id)
	if err != nil {
		return err
	}

	hashes := make([]string, 0, 2*len(run.Files))
	for _, f := range run.Files {
		hashes = append(hashes, f.OriginalHash, f.OutputHash)
	}
	r.release(id, hashes)
	return r.box.Delete(id)
}
