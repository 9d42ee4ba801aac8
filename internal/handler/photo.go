package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/colefenn/tally/internal/photo"
)

const maxPhotoBytes = 10 << 20 // 10 MB

type PhotoHandler struct {
	photos *photo.Store
	logger *slog.Logger
}

func NewPhotoHandler(photos *photo.Store, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{photos: photos, logger: logger}
}

// Upload accepts a multipart form with a "photo" field and returns the
// reference to attach to a chore completion or dispute.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo field is required")
		return
	}
	defer file.Close()

	ref, err := h.photos.Save(file)
	if err != nil {
		h.logger.Error("save photo", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save photo")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"ref": ref})
}

func (h *PhotoHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")

	f, err := h.photos.Open(ref)
	if errors.Is(err, photo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		h.logger.Error("open photo", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open photo")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Error("serve photo", "error", err)
	}
}
