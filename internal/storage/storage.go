// Package storage persists rendered audio artifacts to durable object
// storage and hands back a public URL.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// ErrorCode classifies object storage failures.
type ErrorCode string

const (
	ErrorCodeInvalidConfig ErrorCode = "invalid_config"
	ErrorCodeEmptyObject   ErrorCode = "empty_object"
	ErrorCodeWriteFailed   ErrorCode = "write_failed"
)

// BackendError is a typed object-storage failure.
type BackendError struct {
	Backend string
	Code    ErrorCode
	Key     string
	Cause   error
}

func (e *BackendError) Error() string {
	backend := strings.TrimSpace(e.Backend)
	if backend == "" {
		backend = "object_storage"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s (%s)", backend, e.Code, e.Key)
	}
	return fmt.Sprintf("%s: %s (%s): %v", backend, e.Code, e.Key, e.Cause)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// ObjectStore writes one artifact and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
