// Package file stores audio artifacts on the local filesystem, served
// under a configured base URL. Suited to single-node deployments and
// tests.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wayline/tour-audio-pipeline/internal/storage"
)

const backendName = "file_storage"

// Store writes objects under Dir and maps them to BaseURL/key.
type Store struct {
	dir     string
	baseURL string
}

// New validates the directory and base URL and ensures Dir exists.
func New(dir, baseURL string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeInvalidConfig, Cause: fmt.Errorf("dir is required")}
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeInvalidConfig, Cause: fmt.Errorf("base url is required")}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeInvalidConfig, Cause: err}
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes the object and returns its public URL.
func (s *Store) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeInvalidConfig, Cause: fmt.Errorf("key is required")}
	}
	if len(data) == 0 {
		return "", &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeEmptyObject, Key: key}
	}

	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeWriteFailed, Key: key, Cause: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeWriteFailed, Key: key, Cause: err}
	}
	return s.baseURL + "/" + key, nil
}
