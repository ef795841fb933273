package imagecache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lepinkainen/smart-url-view/pkg/filesystem"
)

// Stats describes the contents of an image store.
type Stats struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// ImageStore persists cached images and maps them to public URLs.
// Write must be atomic: a concurrent reader never sees a partial file.
type ImageStore interface {
	Exists(name string) bool
	Write(name string, data []byte) error
	PublicURL(name string) string
	Clear() (int, error)
	Stats() (Stats, error)
}

// FileStore keeps cached images in a local directory served under baseURL.
type FileStore struct {
	dir     string
	baseURL string
}

var _ ImageStore = (*FileStore)(nil)

// NewFileStore creates the cache directory if needed.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("image cache directory is not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image cache directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory holding the cached files.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Exists reports whether name has been published.
func (s *FileStore) Exists(name string) bool {
	return filesystem.FileExists(s.path(name))
}

// Write publishes data under name.
func (s *FileStore) Write(name string, data []byte) error {
	return filesystem.WriteFileAtomic(s.path(name), data, 0o644)
}

// PublicURL returns the URL the file is served from.
func (s *FileStore) PublicURL(name string) string {
	return s.baseURL + "/" + filepath.Base(name)
}

// Clear removes every cached file.
func (s *FileStore) Clear() (int, error) {
	return filesystem.ClearDir(s.dir)
}

// Stats counts the cached files and their total size.
func (s *FileStore) Stats() (Stats, error) {
	files, size, err := filesystem.DirStats(s.dir)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Files: files, Bytes: size}, nil
}
