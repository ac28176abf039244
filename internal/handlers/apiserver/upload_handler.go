package apiserver

import (
	"fmt"
	"log"
	"net/http"

	"campusconnect/internal/cctypes"
	"campusconnect/internal/config"
)

const (
	defaultMaxMemory = 32 << 20 // 32 MB for the non-file form parts
)

// UploadHandler handles media uploads for profile photos and post
// images.
type UploadHandler struct {
	storageService cctypes.StorageService
	cfg            config.StorageConfig
}

// NewUploadHandler creates a new UploadHandler instance.
func NewUploadHandler(storageService cctypes.StorageService, cfg config.StorageConfig) *UploadHandler {
	return &UploadHandler{
		storageService: storageService,
		cfg:            cfg,
	}
}

// UploadFileHandler accepts a multipart form with a "file" field and
// returns the stored file's info.
func (h *UploadHandler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	maxUploadSize := h.cfg.MaxFileSizeMB << 20
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxMemory
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		if err.Error() == "http: request body too large" {
			msg := fmt.Sprintf("file too large, limit is %d MB", maxUploadSize>>20)
			writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
		} else {
			writeJSONError(w, fmt.Sprintf("failed to parse form: %v", err), http.StatusBadRequest)
		}
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			writeJSONError(w, "missing 'file' field", http.StatusBadRequest)
		} else {
			writeJSONError(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	mimeType := handler.Header.Get("Content-Type")
	log.Printf("Upload received: name=%s, size=%d, type=%s", handler.Filename, handler.Size, mimeType)

	if handler.Size > maxUploadSize {
		msg := fmt.Sprintf("file too large, limit is %d MB", maxUploadSize>>20)
		writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
		return
	}

	fileInfo, err := h.storageService.UploadFile(r.Context(), file, handler.Size, handler.Filename, mimeType)
	if err != nil {
		log.Printf("Failed to store uploaded file: %v", err)
		writeJSONError(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, fileInfo)
}
