package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"remapper/internal/bundle"
	"remapper/internal/errors"
	"remapper/internal/manifest"
	"remapper/internal/remap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockArchive records flatten calls and keeps runs in memory.
type MockArchive struct {
	runs       map[string]*manifest.Run
	flattenErr error
	flattened  []*bundle.Bundle
}

func NewMockArchive() *MockArchive {
	return &MockArchive{runs: make(map[string]*manifest.Run)}
}

func (m *MockArchive) Flatten(b *bundle.Bundle) (*remap.Result, *manifest.Run, error) {
	m.flattened = append(m.flattened, b)
	if m.flattenErr != nil {
		return nil, nil, m.flattenErr
	}

	run := &manifest.Run{
		ID:        fmt.Sprintf("run-%d", len(m.runs)+1),
		Main:      b.Main,
		CreatedAt: time.Now(),
	}
	for _, e := range b.Entries() {
		run.Files = append(run.Files, manifest.FileRecord{OriginalPath: e.Source.Path, IsMain: e.IsMain})
	}
	m.runs[run.ID] = run
	return &remap.Result{}, run, nil
}

func (m *MockArchive) GetRun(id string) (*manifest.Run, error) {
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, errors.NotFound("run not found: " + id)
}

func (m *MockArchive) ListRuns() ([]*manifest.Run, error) {
	var list []*manifest.Run
	for _, r := range m.runs {
		list = append(list, r)
	}
	return list, nil
}

func (m *MockArchive) DeleteRun(id string) error {
	if _, ok := m.runs[id]; !ok {
		return errors.NotFound("run not found: " + id)
	}
	delete(m.runs, id)
	return nil
}

func newTestServer(archive Archive) http.Handler {
	mux := http.NewServeMux()
	NewRemapHandler(archive, nil, "/work").Routes(mux)
	return mux
}

func TestRemapHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		flattenErr error
		wantStatus int
		wantType   errors.ErrorType
	}{
		{
			name: "valid bundle",
			body: `{"base_dir": "/work", "main": "B.sol",
				"bundle": {"sources": {"A.sol": {"content": "contract A{}"}, "B.sol": {"content": "import \"./A.sol\";"}}}}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid body",
			body:       `{"base_dir": 1}`,
			wantStatus: http.StatusBadRequest,
			wantType:   errors.ErrorTypeValidation,
		},
		{
			name:       "base dir outside allowed root",
			body:       `{"base_dir": "/home/user", "bundle": {"sources": {"A.sol": {"content": "a"}}}}`,
			wantStatus: http.StatusBadRequest,
			wantType:   errors.ErrorTypeValidation,
		},
		{
			name:       "invalid path",
			body:       `{"base_dir": "/work", "bundle": {"sources": {"A.sol": {"content": "a"}}}}`,
			flattenErr: errors.InvalidPath("/work/..", "no file stem"),
			wantStatus: http.StatusBadRequest,
			wantType:   errors.ErrorTypeInvalidPath,
		},
		{
			name:       "write failure",
			body:       `{"base_dir": "/work", "bundle": {"sources": {"A.sol": {"content": "a"}}}}`,
			flattenErr: fmt.Errorf("remapping /work/A.sol: %w", errors.IO("writing /work/out/A.sol", syscall.ENOSPC)),
			wantStatus: http.StatusInternalServerError,
			wantType:   errors.ErrorTypeIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := NewMockArchive()
			archive.flattenErr = tt.flattenErr
			srv := newTestServer(archive)

			req := httptest.NewRequest("POST", "/api/remap", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantType != "" {
				var apiErr errors.Error
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
				assert.Equal(t, tt.wantType, apiErr.Type)
				return
			}

			var run manifest.Run
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, "/work/B.sol", run.Main)
			require.Len(t, run.Files, 2)
			assert.Equal(t, "/work/A.sol", run.Files[0].OriginalPath)
			assert.True(t, run.Files[1].IsMain)
		})
	}
}

func TestRemapHandler_Runs(t *testing.T) {
	archive := NewMockArchive()
	archive.runs["run-1"] = &manifest.Run{ID: "run-1", Main: "/work/B.sol"}
	srv := newTestServer(archive)

	t.Run("get existing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/run-1", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		var run manifest.Run
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
		assert.Equal(t, "/work/B.sol", run.Main)
	})

	t.Run("get missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		var runs []manifest.Run
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
		assert.Len(t, runs, 1)
	})

	t.Run("delete", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/runs/run-1", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/runs/run-1", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
