// internal/api/handlers.go
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"remapper/internal/bundle"
	"remapper/internal/errors"
	"remapper/internal/logging"
	"remapper/internal/manifest"
	"remapper/internal/remap"
	"remapper/internal/validation"

	"go.uber.org/zap"
)

// Archive is the part of the parcel the HTTP API drives.
type Archive interface {
	Flatten(b *bundle.Bundle) (*remap.Result, *manifest.Run, error)
	GetRun(id string) (*manifest.Run, error)
	ListRuns() ([]*manifest.Run, error)
	DeleteRun(id string) error
}

type RemapHandler struct {
	archive     Archive
	logger      *logging.Logger
	allowedRoot string
}

// NewRemapHandler serves the remap API. A non-empty allowedRoot confines
// base_dir of every request to that tree.
func NewRemapHandler(archive Archive, logger *logging.Logger, allowedRoot string) *RemapHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &RemapHandler{archive: archive, logger: logger, allowedRoot: allowedRoot}
}

// Create flattens the posted bundle and responds with the recorded run.
func (h *RemapHandler) Create(w http.ResponseWriter, r *http.Request) {
	b, err := validation.ValidateRemapRequest(r, h.allowedRoot)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	_, run, err := h.archive.Flatten(b)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.WithRequestID(r.Context()).Info("bundle flattened",
		zap.String("run_id", run.ID),
		zap.Int("files", len(run.Files)),
		zap.Int("renamed", run.RenamedCount()))
	writeJSON(w, http.StatusCreated, run)
}

func (h *RemapHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	run, err := h.archive.GetRun(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *RemapHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.archive.ListRuns()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*manifest.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RemapHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	if err := h.archive.DeleteRun(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Routes registers the handler on mux.
func (h *RemapHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/remap", h.Create)
	mux.HandleFunc("GET /api/runs", h.List)
	mux.HandleFunc("GET /api/runs/{id}", h.Get)
	mux.HandleFunc("DELETE /api/runs/{id}", h.Delete)
}

func (h *RemapHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *errors.Error
	if !stderrors.As(err, &apiErr) {
		apiErr = errors.Internal("internal error", err)
	}
	if apiErr.Code >= http.StatusInternalServerError {
		h.logger.WithRequestID(r.Context()).Error("request failed",
			zap.String("type", string(apiErr.Type)),
			zap.Error(err))
	}

	// Cause is not serialized; surface it in the message.
	body := *apiErr
	body.Message = err.Error()
	writeJSON(w, apiErr.Code, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
