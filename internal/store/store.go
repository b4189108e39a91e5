// Package store persists tour narrations and audio job records keyed by
// tour ID. The pipeline is handed a Store instead of reaching into any
// process-wide map; the polling surface reads through the same interface.
package store

import (
	"context"
	"errors"

	"github.com/wayline/tour-audio-pipeline/api/tour"
)

// ErrNotFound indicates the requested tour ID has no record.
var ErrNotFound = errors.New("tour not found")

// Store is the persistence contract for tours and their audio jobs.
type Store interface {
	PutNarration(ctx context.Context, narration *tour.Narration) error
	GetNarration(ctx context.Context, tourID string) (*tour.Narration, error)
	PutAudioJob(ctx context.Context, job *tour.AudioJob) error
	GetAudioJob(ctx context.Context, tourID string) (*tour.AudioJob, error)
}
