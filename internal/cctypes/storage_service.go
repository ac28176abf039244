package cctypes

import (
	"context"
	"io"
)

// FileInfo contains basic information and the access URL for an
// uploaded file.
type FileInfo struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName"`
}

// StorageService abstracts media storage (profile photos, post
// images). The interface lives here to keep storage and services free
// of a circular dependency.
type StorageService interface {
	// UploadFile stores the reader's content and returns the file's
	// info including a URL clients can fetch it from.
	UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*FileInfo, error)
}
