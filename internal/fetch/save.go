package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Saved describes a document written to the download directory.
type Saved struct {
	Name string `json:"file_name"`
	Path string `json:"path"`
	MIME string `json:"mime"`
}

// Save writes data to dir under a random name. The extension is taken from
// the detected content type, falling back to ".bin".
func Save(dir string, data []byte) (Saved, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("save document: %w", err)
	}

	mt := mimetype.Detect(data)
	ext := mt.Extension()
	if ext == "" {
		ext = ".bin"
	}

	name := uuid.NewString()
	path := filepath.Join(dir, name+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Saved{}, fmt.Errorf("save document: %w", err)
	}

	return Saved{Name: name, Path: path, MIME: mt.String()}, nil
}

// Extension returns the lowercase extension of a URL or path without the dot.
func Extension(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 && IsURL(location) {
		location = location[:i]
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(location)), ".")
}
