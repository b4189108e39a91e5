package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/internal/store"
)

// sequenceReader replays a fixed series of job states, then repeats the
// last one.
type sequenceReader struct {
	states  []tour.JobStatus
	missing int // leading calls that return ErrNotFound
	calls   int
}

func (r *sequenceReader) GetAudioJob(_ context.Context, tourID string) (*tour.AudioJob, error) {
	r.calls++
	if r.calls <= r.missing {
		return nil, store.ErrNotFound
	}
	idx := r.calls - r.missing - 1
	if idx >= len(r.states) {
		idx = len(r.states) - 1
	}
	return &tour.AudioJob{TourID: tourID, Status: r.states[idx]}, nil
}

func TestWaitUntilCompleted(t *testing.T) {
	t.Parallel()

	reader := &sequenceReader{states: []tour.JobStatus{
		tour.StatusPending, tour.StatusProcessing, tour.StatusProcessing, tour.StatusCompleted,
	}}
	var slept []time.Duration
	p, err := New(reader, Config{
		Interval:    2 * time.Second,
		MaxAttempts: 10,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	job, err := p.Wait(context.Background(), "tour-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Status != tour.StatusCompleted {
		t.Fatalf("status = %s", job.Status)
	}
	if len(slept) != 3 {
		t.Fatalf("expected 3 sleeps, got %d", len(slept))
	}
	for _, d := range slept {
		if d != 2*time.Second {
			t.Fatalf("fixed backoff changed interval: %s", d)
		}
	}
}

func TestWaitToleratesMissingRecordThenFailed(t *testing.T) {
	t.Parallel()

	reader := &sequenceReader{missing: 2, states: []tour.JobStatus{tour.StatusFailed}}
	p, _ := New(reader, Config{
		Interval:    time.Second,
		MaxAttempts: 10,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})

	job, err := p.Wait(context.Background(), "tour-2")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Status != tour.StatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
}

func TestWaitGivesUpAfterBudget(t *testing.T) {
	t.Parallel()

	reader := &sequenceReader{states: []tour.JobStatus{tour.StatusProcessing}}
	p, _ := New(reader, Config{
		Interval:    time.Second,
		MaxAttempts: 5,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})

	_, err := p.Wait(context.Background(), "tour-3")
	if !errors.Is(err, ErrGaveUp) {
		t.Fatalf("expected ErrGaveUp, got %v", err)
	}
	if reader.calls != 5 {
		t.Fatalf("attempts = %d, want 5", reader.calls)
	}
}

func TestWaitExponentialBackoffCapped(t *testing.T) {
	t.Parallel()

	reader := &sequenceReader{states: []tour.JobStatus{tour.StatusProcessing}}
	var slept []time.Duration
	p, _ := New(reader, Config{
		Interval:    2 * time.Second,
		MaxInterval: 8 * time.Second,
		Multiplier:  2,
		MaxAttempts: 5,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})

	if _, err := p.Wait(context.Background(), "tour-4"); !errors.Is(err, ErrGaveUp) {
		t.Fatalf("expected ErrGaveUp, got %v", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("sleeps = %v", slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("sleeps = %v, want %v", slept, want)
		}
	}
}

func TestWaitStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	reader := &sequenceReader{states: []tour.JobStatus{tour.StatusProcessing}}
	p, _ := New(reader, Config{Interval: time.Millisecond, MaxAttempts: 1000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Wait(ctx, "tour-5"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
