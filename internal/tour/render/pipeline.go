// Package render turns a stored narration into a single audio artifact,
// advancing the tour's audio job through its lifecycle as it goes.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/internal/storage"
	"github.com/wayline/tour-audio-pipeline/internal/store"
	"github.com/wayline/tour-audio-pipeline/internal/tour/audiojob"
	"github.com/wayline/tour-audio-pipeline/internal/tour/speech"
)

// ErrRenderInFlight indicates a render is already running for this tour.
// The second request is rejected rather than allowed to race the first.
var ErrRenderInFlight = errors.New("audio render already in flight for this tour")

// Synthesizer renders one text chunk to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	// MaxChunkChars is the per-request character ceiling, already under
	// the provider's hard limit.
	MaxChunkChars() int
}

// Config wires the pipeline's collaborators.
type Config struct {
	Store   store.Store
	Objects storage.ObjectStore
	Synth   Synthesizer
	Logger  *slog.Logger
}

// Pipeline renders audio for tours. Safe for concurrent use; renders for
// distinct tours may overlap, renders for the same tour may not.
type Pipeline struct {
	store   store.Store
	objects storage.ObjectStore
	synth   Synthesizer
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// New validates the wiring and constructs a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if cfg.Synth == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		store:    cfg.Store,
		objects:  cfg.Objects,
		synth:    cfg.Synth,
		logger:   cfg.Logger,
		inFlight: make(map[string]bool),
	}, nil
}

// Render runs a fresh render for a pending tour. It blocks until the job
// reaches a terminal state; callers wanting fire-and-forget run it in a
// goroutine and poll the job record.
func (p *Pipeline) Render(ctx context.Context, tourID string) error {
	return p.run(ctx, tourID, false)
}

// Retry re-runs a failed render. Only legal from the failed state, and
// only on an explicit caller request.
func (p *Pipeline) Retry(ctx context.Context, tourID string) error {
	return p.run(ctx, tourID, true)
}

func (p *Pipeline) run(ctx context.Context, tourID string, retry bool) error {
	tourID = strings.TrimSpace(tourID)
	if tourID == "" {
		return fmt.Errorf("tour id is required")
	}
	if !p.acquire(tourID) {
		return ErrRenderInFlight
	}
	defer p.release(tourID)

	job, err := p.loadJob(ctx, tourID)
	if err != nil {
		return err
	}
	fsm, err := audiojob.New(tourID, job.Status)
	if err != nil {
		return err
	}
	if retry {
		err = fsm.Retry()
	} else {
		err = fsm.Start()
	}
	if err != nil {
		return err
	}
	job.Status = fsm.State()
	job.ErrorMessage = ""
	if err := p.store.PutAudioJob(ctx, job); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}
	p.logger.Info("audio render started", "tour_id", tourID, "retry", retry)

	url, durationSeconds, size, renderErr := p.renderAudio(ctx, tourID)
	if renderErr != nil {
		// The narration itself stays valid and stored; only the audio
		// job carries the failure.
		if ferr := fsm.Fail(); ferr != nil {
			return ferr
		}
		job.Status = fsm.State()
		job.ErrorMessage = renderErr.Error()
		if perr := p.store.PutAudioJob(ctx, job); perr != nil {
			p.logger.Error("failed job state not persisted", "tour_id", tourID, "error", perr)
		}
		p.logger.Error("audio render failed", "tour_id", tourID, "error", renderErr)
		return renderErr
	}

	if err := fsm.Complete(); err != nil {
		return err
	}
	job.Status = fsm.State()
	job.AudioURL = url
	job.AudioDurationSeconds = durationSeconds
	job.AudioFileSizeBytes = size
	job.ErrorMessage = ""
	if err := p.store.PutAudioJob(ctx, job); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	p.logger.Info("audio render completed", "tour_id", tourID,
		"audio_url", url, "duration_seconds", durationSeconds, "size_bytes", size)
	return nil
}

// renderAudio performs steps 2-7: load, clean, chunk, synthesize
// sequentially, concatenate, persist.
func (p *Pipeline) renderAudio(ctx context.Context, tourID string) (url string, durationSeconds int, size int64, err error) {
	narration, err := p.store.GetNarration(ctx, tourID)
	if err != nil {
		return "", 0, 0, err
	}
	if strings.TrimSpace(narration.NarrationText) == "" {
		return "", 0, 0, fmt.Errorf("tour %s: %w", tourID, store.ErrNotFound)
	}

	cleaned := speech.CleanForSpeech(narration.NarrationText)
	chunks, err := speech.SplitIntoChunks(cleaned, p.synth.MaxChunkChars())
	if err != nil {
		var overflow *speech.ChunkOverflowError
		if !errors.As(err, &overflow) {
			return "", 0, 0, err
		}
		// Oversized sentences go to the provider verbatim rather than
		// being truncated; the provider may reject them.
		p.logger.Warn("narration has oversized chunks", "tour_id", tourID,
			"limit", overflow.Limit, "count", len(overflow.Oversized))
	}
	if len(chunks) == 0 {
		return "", 0, 0, fmt.Errorf("tour %s: %w", tourID, store.ErrNotFound)
	}

	// Chunks render strictly in order, one at a time. Concurrency here
	// would interleave rate-limited responses and risk provider-side
	// collisions on a single logical job; latency is not the bottleneck.
	var audio []byte
	for i, chunk := range chunks {
		segment, synthErr := p.synth.Synthesize(ctx, chunk)
		if synthErr != nil {
			// Partial audio is not acceptable output.
			return "", 0, 0, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), synthErr)
		}
		audio = append(audio, segment...)
		p.logger.Debug("chunk rendered", "tour_id", tourID, "chunk", i+1, "of", len(chunks))
	}

	url, err = p.objects.Put(ctx, "tours/"+tourID+".mp3", audio, "audio/mpeg")
	if err != nil {
		return "", 0, 0, err
	}
	return url, tour.EstimateDurationSeconds(tour.CountWords(cleaned)), int64(len(audio)), nil
}

// loadJob returns the stored job record, or a fresh pending record when
// the narration was generated before any audio was requested.
func (p *Pipeline) loadJob(ctx context.Context, tourID string) (*tour.AudioJob, error) {
	job, err := p.store.GetAudioJob(ctx, tourID)
	if errors.Is(err, store.ErrNotFound) {
		return &tour.AudioJob{TourID: tourID, Status: tour.StatusPending}, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (p *Pipeline) acquire(tourID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[tourID] {
		return false
	}
	p.inFlight[tourID] = true
	return true
}

func (p *Pipeline) release(tourID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, tourID)
}
