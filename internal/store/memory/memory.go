// Package memory provides an in-process Store for tests and single-node
// deployments.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/internal/store"
)

// Store keeps narrations and audio jobs in RWMutex-guarded maps. Values
// are copied on the way in and out so callers never share record memory.
type Store struct {
	mu         sync.RWMutex
	narrations map[string]tour.Narration
	jobs       map[string]tour.AudioJob
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		narrations: make(map[string]tour.Narration),
		jobs:       make(map[string]tour.AudioJob),
	}
}

// PutNarration stores a copy of the narration.
func (s *Store) PutNarration(_ context.Context, narration *tour.Narration) error {
	if narration == nil || strings.TrimSpace(narration.TourID) == "" {
		return fmt.Errorf("narration with tour_id is required")
	}
	copied := *narration
	copied.Sources = append([]string(nil), narration.Sources...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.narrations[copied.TourID] = copied
	return nil
}

// GetNarration returns a copy of the stored narration.
func (s *Store) GetNarration(_ context.Context, tourID string) (*tour.Narration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.narrations[strings.TrimSpace(tourID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := stored
	copied.Sources = append([]string(nil), stored.Sources...)
	return &copied, nil
}

// PutAudioJob stores a copy of the audio job record.
func (s *Store) PutAudioJob(_ context.Context, job *tour.AudioJob) error {
	if job == nil || strings.TrimSpace(job.TourID) == "" {
		return fmt.Errorf("audio job with tour_id is required")
	}
	if err := job.Status.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.TourID] = *job
	return nil
}

// GetAudioJob returns a copy of the stored audio job record.
func (s *Store) GetAudioJob(_ context.Context, tourID string) (*tour.AudioJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.jobs[strings.TrimSpace(tourID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := stored
	return &copied, nil
}
