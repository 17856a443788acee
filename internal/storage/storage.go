// Package storage writes uploaded recipe images to a local media directory or
// an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"recipebox/internal/config"
)

// ErrInvalidKey is returned for keys that are empty or escape the storage root.
var ErrInvalidKey = errors.New("storage: invalid key")

// Storage persists objects under slash-separated keys.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the Storage selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", config.StorageDriverLocal:
		return NewLocal(cfg.MediaRoot, cfg.MediaURL), nil
	case config.StorageDriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

// Local stores files below a root directory and serves them under baseURL.
type Local struct {
	root    string
	baseURL string
}

// NewLocal returns a Local storage rooted at root.
func NewLocal(root, baseURL string) *Local {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "/media/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Local{root: root, baseURL: baseURL}
}

func (l *Local) Save(ctx context.Context, key string, r io.Reader, _ string) error {
	target, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create media directory: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open media file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write media file: %w", err)
	}
	return f.Close()
}

func (l *Local) Delete(_ context.Context, key string) error {
	target, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove media file: %w", err)
	}
	return nil
}

func (l *Local) URL(key string) string {
	return l.baseURL + strings.TrimPrefix(key, "/")
}

// BaseURL is the path prefix the media handler is mounted on.
func (l *Local) BaseURL() string {
	return l.baseURL
}

// Handler serves stored files; mount it on BaseURL. Directories are never
// listed.
func (l *Local) Handler() http.Handler {
	return http.StripPrefix(l.baseURL, http.FileServer(filesOnly{http.Dir(l.root)}))
}

type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

func (l *Local) resolve(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if strings.TrimSpace(key) == "" || cleaned == "/" {
		return "", ErrInvalidKey
	}
	if strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}
