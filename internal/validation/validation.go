package validation

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"path/filepath"
	"strings"

	"remapper/internal/bundle"
	"remapper/internal/errors"
)

// RemapRequest is the body of POST /api/remap. Bundle is a compiler-input
// document; its source paths are resolved against BaseDir.
type RemapRequest struct {
	BaseDir string          `json:"base_dir"`
	Main    string          `json:"main"`
	Bundle  json.RawMessage `json:"bundle"`
}

// ValidateRemapRequest decodes the request and returns its bundle with
// absolute source paths. Every source must stay inside base_dir, and
// base_dir inside allowedRoot when one is set.
func ValidateRemapRequest(r *http.Request, allowedRoot string) (*bundle.Bundle, error) {
	var req RemapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.PayloadTooLarge(tooLarge.Limit)
		}
		return nil, errors.ValidationError("invalid request body", nil)
	}

	if req.BaseDir == "" || !filepath.IsAbs(req.BaseDir) {
		return nil, errors.ValidationError("base_dir must be an absolute path", req.BaseDir)
	}
	baseDir := filepath.Clean(req.BaseDir)
	if allowedRoot != "" && !within(filepath.Clean(allowedRoot), baseDir) {
		return nil, errors.ValidationError("base_dir is outside the allowed root", req.BaseDir)
	}
	if len(req.Bundle) == 0 {
		return nil, errors.ValidationError("bundle is required", nil)
	}

	b, err := bundle.Decode(bytes.NewReader(req.Bundle), req.Main)
	if err != nil {
		return nil, errors.ValidationError("invalid bundle", err.Error())
	}
	if b.Len() == 0 {
		return nil, errors.ValidationError("bundle has no sources", nil)
	}
	if req.Main != "" {
		if _, ok := b.Get(req.Main); !ok {
			return nil, errors.ValidationError("main is not one of the bundle sources", req.Main)
		}
	}

	resolved, err := b.ResolvePaths(baseDir)
	if err != nil {
		return nil, errors.Internal("resolving source paths", err)
	}
	for _, path := range resolved.Paths() {
		if !within(baseDir, path) {
			return nil, errors.ValidationError("source path escapes base_dir", path)
		}
	}
	return resolved, nil
}

// within reports whether path is root or lies below it. Both must be clean
// and absolute.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
