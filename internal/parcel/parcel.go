// internal/parcel/parcel.go
package parcel

import (
	"fmt"
	"os"
	"path/filepath"

	"remapper/internal/bundle"
	"remapper/internal/diff"
	"remapper/internal/manifest"
	"remapper/internal/remap"
	"remapper/internal/safe"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Parcel wires the remapper to the run archive: every successful flatten is
// recorded with its original and flattened contents.
type Parcel struct {
	Root     string
	DB       *badger.DB
	Safe     *safe.Safe
	Runs     *manifest.Store
	Recorder *manifest.Recorder
	Remapper *remap.Remapper
	Logger   *zap.Logger
}

type Options struct {
	// DataDir holds the badger database and archived content.
	DataDir string
	// InMemory keeps the database in memory; content still goes to DataDir.
	InMemory        bool
	CacheSize       int
	CompressMinSize int
	Remap           remap.Options
}

// FileDiff is the rewrite diff of one file in a recorded run.
type FileDiff struct {
	File   manifest.FileRecord
	Result *diff.Result
}

func Initialize(root string) error {
	dirs := []string{
		filepath.Join(root, "db"),
		filepath.Join(root, "content"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	return nil
}

func New(opts Options, logger *zap.Logger) (*Parcel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	absPath, err := filepath.Abs(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for data dir %s: %w", opts.DataDir, err)
	}

	if err := Initialize(absPath); err != nil {
		return nil, fmt.Errorf("initializing directories: %w", err)
	}

	db, err := InitDB(filepath.Join(absPath, "db"), opts.InMemory)
	if err != nil {
		return nil, err
	}

	compression := safe.DefaultCompressionOptions()
	if opts.CompressMinSize > 0 {
		compression.MinSize = opts.CompressMinSize
	}
	contentSafe, err := safe.New(db, safe.Options{
		Root:        filepath.Join(absPath, "content"),
		CacheSize:   opts.CacheSize,
		Compression: compression,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing content safe: %w", err)
	}

	remapOpts := opts.Remap
	if remapOpts.Logger == nil {
		remapOpts.Logger = logger
	}
	remapper, err := remap.NewRemapper(remapOpts)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating remapper: %w", err)
	}

	runs := manifest.NewStore(db)
	return &Parcel{
		Root:     absPath,
		DB:       db,
		Safe:     contentSafe,
		Runs:     runs,
		Recorder: manifest.NewRecorder(runs, contentSafe, logger),
		Remapper: remapper,
		Logger:   logger,
	}, nil
}

// Flatten remaps the bundle and records the run. On a remap failure nothing
// is recorded, though files written before the failing entry remain.
func (p *Parcel) Flatten(b *bundle.Bundle) (*remap.Result, *manifest.Run, error) {
	result, err := p.Remapper.Remap(b)
	if err != nil {
		return nil, nil, err
	}

	run, err := p.Recorder.Record(b, result)
	if err != nil {
		return result, nil, fmt.Errorf("recording run: %w", err)
	}
	return result, run, nil
}

func (p *Parcel) GetRun(id string) (*manifest.Run, error) {
	return p.Runs.Get(id)
}

func (p *Parcel) ListRuns() ([]*manifest.Run, error) {
	return p.Runs.List()
}

// DeleteRun removes the run record and releases its archived content. The
// flattened files on disk are left alone.
func (p *Parcel) DeleteRun(id string) error {
	return p.Recorder.Delete(id)
}

// Diffs returns the rewrite diff of every file in a run whose flattened
// content differs from the original.
func (p *Parcel) Diffs(id string, contextLines int) ([]FileDiff, error) {
	run, err := p.Runs.Get(id)
	if err != nil {
		return nil, err
	}

	engine := diff.NewEngine(contextLines)
	var diffs []FileDiff
	for _, f := range run.Files {
		if f.OriginalHash == f.OutputHash {
			continue
		}
		original, output, err := p.Recorder.Contents(f)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, FileDiff{File: f, Result: engine.Diff(original, output)})
	}
	return diffs, nil
}

func (p *Parcel) Close() error {
	if p.DB == nil {
		return nil
	}
	if err := p.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
