package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/internal/store"
	"github.com/wayline/tour-audio-pipeline/internal/store/memory"
)

type fakeSynth struct {
	mu        sync.Mutex
	chunks    []string
	failAfter int // fail on call N (1-based); 0 = never
	limit     int
	block     chan struct{} // if set, Synthesize waits on it
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, text)
	if f.failAfter > 0 && len(f.chunks) >= f.failAfter {
		return nil, fmt.Errorf("tts unavailable")
	}
	return []byte("<" + text[:min(8, len(text))] + ">"), nil
}

func (f *fakeSynth) MaxChunkChars() int {
	if f.limit > 0 {
		return f.limit
	}
	return 60
}

type fakeObjects struct {
	mu      sync.Mutex
	putKey  string
	putData []byte
	err     error
}

func (f *fakeObjects) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.putKey = key
	f.putData = append([]byte(nil), data...)
	return "https://cdn.example/" + key, nil
}

func seedNarration(t *testing.T, s store.Store, tourID, text string) {
	t.Helper()
	err := s.PutNarration(context.Background(), &tour.Narration{
		TourID:        tourID,
		Title:         "Test Tour",
		NarrationText: text,
		WordCount:     tour.CountWords(text),
	})
	if err != nil {
		t.Fatalf("seed narration: %v", err)
	}
	if err := s.PutAudioJob(context.Background(), &tour.AudioJob{TourID: tourID, Status: tour.StatusPending}); err != nil {
		t.Fatalf("seed job: %v", err)
	}
}

func newPipeline(t *testing.T, s store.Store, synth Synthesizer, objects *fakeObjects) *Pipeline {
	t.Helper()
	p, err := New(Config{Store: s, Objects: objects, Synth: synth})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return p
}

func TestRenderHappyPath(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	text := "First paragraph of the walk.\n\nSecond paragraph of the walk.\n\nThird paragraph of the walk."
	seedNarration(t, mem, "tour-1", text)

	synth := &fakeSynth{}
	objects := &fakeObjects{}
	p := newPipeline(t, mem, synth, objects)

	if err := p.Render(context.Background(), "tour-1"); err != nil {
		t.Fatalf("render: %v", err)
	}

	job, err := mem.GetAudioJob(context.Background(), "tour-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != tour.StatusCompleted {
		t.Fatalf("status = %s", job.Status)
	}
	if job.AudioURL != "https://cdn.example/tours/tour-1.mp3" {
		t.Fatalf("audio url = %q", job.AudioURL)
	}
	if job.AudioFileSizeBytes != int64(len(objects.putData)) {
		t.Fatalf("size = %d, stored %d", job.AudioFileSizeBytes, len(objects.putData))
	}
	if job.AudioDurationSeconds <= 0 {
		t.Fatalf("duration = %d", job.AudioDurationSeconds)
	}
	if job.ErrorMessage != "" {
		t.Fatalf("unexpected error message %q", job.ErrorMessage)
	}

	// Segments are concatenated in chunk order.
	var want []byte
	for _, chunk := range synth.chunks {
		want = append(want, []byte("<"+chunk[:min(8, len(chunk))]+">")...)
	}
	if !bytes.Equal(objects.putData, want) {
		t.Fatalf("artifact is not the ordered segment concatenation")
	}
	if len(synth.chunks) < 2 {
		t.Fatalf("expected multiple chunks with a 60-char ceiling, got %d", len(synth.chunks))
	}
}

func TestRenderFailureLeavesNarrationAndMarksJobFailed(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	seedNarration(t, mem, "tour-2", "One paragraph here.\n\nAnother paragraph here.\n\nAnd one more paragraph.")

	synth := &fakeSynth{failAfter: 2}
	objects := &fakeObjects{}
	p := newPipeline(t, mem, synth, objects)

	err := p.Render(context.Background(), "tour-2")
	if err == nil {
		t.Fatalf("expected render failure")
	}

	job, _ := mem.GetAudioJob(context.Background(), "tour-2")
	if job.Status != tour.StatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "tts unavailable") {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
	if objects.putKey != "" {
		t.Fatalf("partial audio must never be persisted")
	}

	// The narration itself must remain untouched and readable.
	narration, err := mem.GetNarration(context.Background(), "tour-2")
	if err != nil || narration.NarrationText == "" {
		t.Fatalf("narration lost after audio failure: %v", err)
	}
}

func TestRetryOnlyFromFailed(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	seedNarration(t, mem, "tour-3", "A short single paragraph tour.")

	// First render fails.
	failing := &fakeSynth{failAfter: 1, limit: 10000}
	objects := &fakeObjects{}
	p := newPipeline(t, mem, failing, objects)
	if err := p.Render(context.Background(), "tour-3"); err == nil {
		t.Fatalf("expected first render to fail")
	}

	// Retry succeeds and clears the error.
	working := &fakeSynth{limit: 10000}
	p2 := newPipeline(t, mem, working, objects)
	if err := p2.Retry(context.Background(), "tour-3"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	job, _ := mem.GetAudioJob(context.Background(), "tour-3")
	if job.Status != tour.StatusCompleted || job.ErrorMessage != "" {
		t.Fatalf("after retry: %+v", job)
	}

	// Retry from completed is illegal.
	if err := p2.Retry(context.Background(), "tour-3"); err == nil {
		t.Fatalf("retry from completed must be rejected")
	}
	// As is a fresh render from completed.
	if err := p2.Render(context.Background(), "tour-3"); err == nil {
		t.Fatalf("render from completed must be rejected")
	}
}

func TestConcurrentRenderRejected(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	seedNarration(t, mem, "tour-4", "A short single paragraph tour.")

	gate := make(chan struct{})
	synth := &fakeSynth{limit: 10000, block: gate}
	objects := &fakeObjects{}
	p := newPipeline(t, mem, synth, objects)

	done := make(chan error, 1)
	go func() { done <- p.Render(context.Background(), "tour-4") }()

	// Wait until the first render holds the slot, then collide.
	for {
		if !p.acquire("tour-4") {
			break
		}
		p.release("tour-4")
	}
	if err := p.Render(context.Background(), "tour-4"); !errors.Is(err, ErrRenderInFlight) {
		t.Fatalf("expected ErrRenderInFlight, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first render: %v", err)
	}
}

func TestRenderMissingNarration(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	p := newPipeline(t, mem, &fakeSynth{}, &fakeObjects{})

	err := p.Render(context.Background(), "ghost-tour")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	job, jerr := mem.GetAudioJob(context.Background(), "ghost-tour")
	if jerr != nil {
		t.Fatalf("job record should exist after attempt: %v", jerr)
	}
	if job.Status != tour.StatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
}

func TestRenderStorageFailure(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	seedNarration(t, mem, "tour-5", "A short single paragraph tour.")

	objects := &fakeObjects{err: fmt.Errorf("bucket gone")}
	p := newPipeline(t, mem, &fakeSynth{limit: 10000}, objects)

	if err := p.Render(context.Background(), "tour-5"); err == nil {
		t.Fatalf("expected storage failure to fail the render")
	}
	job, _ := mem.GetAudioJob(context.Background(), "tour-5")
	if job.Status != tour.StatusFailed || !strings.Contains(job.ErrorMessage, "bucket gone") {
		t.Fatalf("job after storage failure: %+v", job)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
