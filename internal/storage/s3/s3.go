// Package s3 stores audio artifacts in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wayline/tour-audio-pipeline/internal/storage"
)

const backendName = "s3_storage"

type putClient interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

type Config struct {
	Region string
	Bucket string
	// PublicBaseURL overrides the default virtual-hosted URL, e.g. a
	// CDN domain fronting the bucket.
	PublicBaseURL string
}

// Store writes objects to one bucket. The SDK client is created lazily
// so tests can inject a fake through NewWithClient.
type Store struct {
	mu     sync.Mutex
	client putClient
	cfg    Config
}

func New(cfg Config) (*Store, error) {
	return NewWithClient(cfg, nil)
}

func NewWithClient(cfg Config, client putClient) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeInvalidConfig, Cause: fmt.Errorf("bucket is required")}
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	return &Store{client: client, cfg: cfg}, nil
}

// Put uploads the object and returns its public URL.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeInvalidConfig, Cause: fmt.Errorf("key is required")}
	}
	if len(data) == 0 {
		return "", &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeEmptyObject, Key: key}
	}
	client, err := s.resolveClient(ctx)
	if err != nil {
		return "", &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeInvalidConfig, Key: key, Cause: err}
	}

	_, err = client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      &s.cfg.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", &storage.BackendError{Backend: backendName, Code: storage.ErrorCodeWriteFailed, Key: key, Cause: err}
	}
	return s.publicURL(key), nil
}

func (s *Store) publicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

func (s *Store) resolveClient(ctx context.Context) (putClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s.client = awss3.NewFromConfig(awsCfg)
	return s.client, nil
}
