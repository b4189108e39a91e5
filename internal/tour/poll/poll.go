// Package poll watches an audio job until it reaches a terminal state.
// It is the reading side of the job lifecycle: it never writes state.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wayline/tour-audio-pipeline/api/tour"
)

// ErrGaveUp indicates the job did not reach a terminal state within the
// attempt budget.
var ErrGaveUp = errors.New("gave up waiting for audio job")

// JobReader reads the current audio job record for a tour.
type JobReader interface {
	GetAudioJob(ctx context.Context, tourID string) (*tour.AudioJob, error)
}

// Config controls the poll loop. Zero values select the defaults:
// 2 second interval, 60 attempts, fixed backoff.
type Config struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64 // >1 grows the interval after each attempt
	MaxAttempts int
	Sleep       func(ctx context.Context, d time.Duration) error
}

// Poller polls a job reader with bounded attempts and backoff.
type Poller struct {
	reader JobReader
	cfg    Config
}

// New constructs a poller with defaults applied. The interval floor of
// two seconds respects provider and storage rate limits.
func New(reader JobReader, cfg Config) (*Poller, error) {
	if reader == nil {
		return nil, fmt.Errorf("job reader is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Poller{reader: reader, cfg: cfg}, nil
}

// Wait polls until the job reaches a terminal state, the attempt budget
// runs out (ErrGaveUp), or ctx is cancelled. A missing job record counts
// as an attempt: the job may simply not have been written yet.
func (p *Poller) Wait(ctx context.Context, tourID string) (*tour.AudioJob, error) {
	interval := p.cfg.Interval
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		job, err := p.reader.GetAudioJob(ctx, tourID)
		if err == nil && job.Status.Terminal() {
			return job, nil
		}
		lastErr = err

		if attempt == p.cfg.MaxAttempts {
			break
		}
		if err := p.cfg.Sleep(ctx, interval); err != nil {
			return nil, err
		}
		interval = time.Duration(float64(interval) * p.cfg.Multiplier)
		if interval > p.cfg.MaxInterval {
			interval = p.cfg.MaxInterval
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", ErrGaveUp, lastErr)
	}
	return nil, ErrGaveUp
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
