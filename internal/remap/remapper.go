// Package remap flattens a bundle of interrelated sources into a temp
// directory next to each source, renaming base-name collisions and rewriting
// imports of renamed files.
//
// A run is synchronous and single-writer: two runs targeting the same temp
// directory may race. A failed run leaves files written by earlier entries on
// disk.
package remap

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"remapper/internal/bundle"
	"remapper/internal/config"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Options configures a Remapper. ProjectPaths and Remappings ("prefix=target"
// rules as a compiler accepts them) are passed through to the Result for
// other collaborators; rewriting never reads them.
type Options struct {
	TempDirectory   string
	SourceExtension string
	ProjectPaths    map[string]string
	Remappings      []string

	// Fs defaults to the OS filesystem.
	Fs     afero.Fs
	Logger *zap.Logger
}

// OptionsFromConfig maps the remap config section onto Options.
func OptionsFromConfig(cfg config.RemapConfig) Options {
	return Options{
		TempDirectory:   cfg.TempDirectory,
		SourceExtension: cfg.SourceExtension,
		ProjectPaths:    cfg.ProjectPaths,
		Remappings:      cfg.Remappings,
	}
}

type Remapper struct {
	tempDirectory string
	extension     string
	projectPaths  map[string]string
	remappings    []string

	fs           afero.Fs
	materializer *Materializer
	importRe     *regexp.Regexp
	logger       *zap.Logger
}

// FileResult describes one written source.
type FileResult struct {
	OriginalPath string `json:"original_path"`
	OutputPath   string `json:"output_path"`
	Name         string `json:"name"`
	Renamed      bool   `json:"renamed"`
	IsMain       bool   `json:"is_main"`
	Content      string `json:"-"`
}

// Result is returned only when every source was written.
type Result struct {
	TempDirectory string            `json:"temp_directory"`
	Files         []FileResult      `json:"files"`
	Renames       map[string]Rename `json:"renames"`
	ProjectPaths  map[string]string `json:"project_paths,omitempty"`
	Remappings    []string          `json:"remappings,omitempty"`
}

func NewRemapper(opts Options) (*Remapper, error) {
	if opts.TempDirectory == "" {
		opts.TempDirectory = config.DefaultTempDirectory
	}
	ext := strings.TrimPrefix(opts.SourceExtension, ".")
	if ext == "" {
		ext = config.DefaultSourceExtension
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	re, err := compileImportPattern(importPattern)
	if err != nil {
		return nil, err
	}

	return &Remapper{
		tempDirectory: opts.TempDirectory,
		extension:     ext,
		projectPaths:  opts.ProjectPaths,
		remappings:    opts.Remappings,
		fs:            opts.Fs,
		materializer:  NewMaterializer(opts.Fs),
		importRe:      re,
		logger:        opts.Logger,
	}, nil
}

func (r *Remapper) TempDirectory() string {
	return r.tempDirectory
}

// Remap processes the bundle in order and stops at the first error.
func (r *Remapper) Remap(b *bundle.Bundle) (*Result, error) {
	st := newState()
	result := &Result{
		TempDirectory: r.tempDirectory,
		Files:         make([]FileResult, 0, b.Len()),
		ProjectPaths:  r.projectPaths,
		Remappings:    r.remappings,
	}

	for _, entry := range b.Entries() {
		src := entry.Source
		r.logger.Debug("remapping source",
			zap.String("path", src.Path),
			zap.Bool("main", entry.IsMain))

		name, renamed, err := st.resolveName(src.Path, src.Content)
		if err != nil {
			return nil, err
		}

		outputPath, err := r.register(st, src.Path, name, renamed)
		if err != nil {
			return nil, err
		}
		if renamed {
			r.logger.Info("renamed colliding source",
				zap.String("path", src.Path),
				zap.String("name", name))
		}

		content := r.rewriteImports(st, src.Content, filepath.Dir(src.Path))

		if err := r.materializer.Write(outputPath, content); err != nil {
			return nil, fmt.Errorf("remapping %s: %w", src.Path, err)
		}

		result.Files = append(result.Files, FileResult{
			OriginalPath: src.Path,
			OutputPath:   outputPath,
			Name:         name,
			Renamed:      renamed,
			IsMain:       entry.IsMain,
			Content:      content,
		})
	}

	result.Renames = st.renames()
	return result, nil
}
