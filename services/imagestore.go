// Package services provides business logic services
package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Image kinds stored for a capture. "plate" is the plate crop, "context"
// the overview frame.
const (
	ImageKindPlate   = "plate"
	ImageKindContext = "context"
)

// ImageStore persists capture image blobs on disk, addressed by a
// generated identifier. Records keep the returned path, never the bytes.
type ImageStore struct {
	dir string
}

// NewImageStore creates the store, ensuring the target directory exists.
func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", dir, err)
	}
	return &ImageStore{dir: dir}, nil
}

// Save writes one decoded image and returns its path.
func (s *ImageStore) Save(kind string, data []byte) (string, error) {
	filename := fmt.Sprintf("%s_%s.jpg", kind, uuid.New().String())
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s image: %w", kind, err)
	}
	return path, nil
}

// Dir returns the directory images are stored under.
func (s *ImageStore) Dir() string {
	return s.dir
}
