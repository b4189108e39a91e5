// Package orchestrator runs the dual-query research fan-out and merges
// the two legs into one tour narration.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/internal/store"
	"github.com/wayline/tour-audio-pipeline/internal/tour/prompt"
)

const maxNearbyHighlights = 8

// GenerationFailedError wraps the research failure that sank a tour
// generation. Generation is all-or-nothing: one failed leg fails the
// whole tour, and the orchestrator never retries on its own.
type GenerationFailedError struct {
	Leg string // "area" or "street"
	Err error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("tour generation failed on %s query: %v", e.Leg, e.Err)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Err
}

// Researcher is the single research-provider call the orchestrator fans
// out to.
type Researcher interface {
	Research(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (tour.ResearchResult, error)
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Researcher  Researcher
	Store       store.Store // optional; persistence is best-effort
	Logger      *slog.Logger
	TotalTokens int
	Now         func() time.Time
}

// Orchestrator generates tour narrations.
type Orchestrator struct {
	researcher  Researcher
	store       store.Store
	logger      *slog.Logger
	totalTokens int
	now         func() time.Time
}

// New constructs an orchestrator with defaults applied.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Researcher == nil {
		return nil, fmt.Errorf("researcher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TotalTokens <= 0 {
		cfg.TotalTokens = prompt.DefaultTotalTokens
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		researcher:  cfg.Researcher,
		store:       cfg.Store,
		logger:      cfg.Logger,
		totalTokens: cfg.TotalTokens,
		now:         cfg.Now,
	}, nil
}

// GenerateTour runs both research legs concurrently, joins on both, and
// merges them into a narration. May take tens of seconds; the caller's
// ctx is the only deadline.
func (o *Orchestrator) GenerateTour(ctx context.Context, req tour.GenerateRequest) (*tour.Narration, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	areaQuery, streetQuery := prompt.BuildQueries(req, o.totalTokens)

	var (
		wg                 sync.WaitGroup
		areaRes, streetRes tour.ResearchResult
		areaErr, streetErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		areaRes, areaErr = o.researcher.Research(ctx, areaQuery.SystemPrompt, areaQuery.UserPrompt, areaQuery.MaxTokens)
	}()
	go func() {
		defer wg.Done()
		streetRes, streetErr = o.researcher.Research(ctx, streetQuery.SystemPrompt, streetQuery.UserPrompt, streetQuery.MaxTokens)
	}()
	// All-succeed barrier: always wait for the slower leg; a tour with
	// only half its geographic context is not acceptable output.
	wg.Wait()

	if areaErr != nil {
		return nil, &GenerationFailedError{Leg: "area", Err: areaErr}
	}
	if streetErr != nil {
		return nil, &GenerationFailedError{Leg: "street", Err: streetErr}
	}

	narrationText := mergeNarration(areaRes.Content, streetRes.Content, req.SelectedPlaces, req.NearbyPlaces)
	wordCount := tour.CountWords(narrationText)
	narration := &tour.Narration{
		TourID:                   o.newTourID(),
		Title:                    fmt.Sprintf("A Walking Tour of %s", req.Location.StreetName),
		Description:              describeTour(req),
		NarrationText:            narrationText,
		Sources:                  mergeCitations(areaRes.Citations, streetRes.Citations),
		WordCount:                wordCount,
		EstimatedDurationMinutes: tour.EstimateDurationMinutes(wordCount),
	}

	o.persistBestEffort(ctx, narration)
	return narration, nil
}

// persistBestEffort stores the narration and a pending audio job.
// Generation succeeds even if persistence fails; the caller still holds
// the narration in hand.
func (o *Orchestrator) persistBestEffort(ctx context.Context, narration *tour.Narration) {
	if o.store == nil {
		return
	}
	if err := o.store.PutNarration(ctx, narration); err != nil {
		o.logger.Warn("tour narration not persisted", "tour_id", narration.TourID, "error", err)
		return
	}
	job := &tour.AudioJob{TourID: narration.TourID, Status: tour.StatusPending}
	if err := o.store.PutAudioJob(ctx, job); err != nil {
		o.logger.Warn("audio job not persisted", "tour_id", narration.TourID, "error", err)
	}
}

func (o *Orchestrator) newTourID() string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("tour-%d-%s", o.now().UnixMilli(), suffix)
}

func mergeNarration(areaContent, streetContent string, selected, nearby []tour.Place) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(areaContent))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(streetContent))

	if section := nearbyHighlights(selected, nearby); section != "" {
		b.WriteString("\n\n")
		b.WriteString(section)
	}
	return b.String()
}

// nearbyHighlights lists up to eight places the user did not select,
// name and category only. Ratings and review counts are deliberately
// left out of the narration.
func nearbyHighlights(selected, nearby []tour.Place) string {
	if len(nearby) == 0 {
		return ""
	}
	chosen := make(map[string]bool, len(selected))
	for _, place := range selected {
		chosen[placeKey(place)] = true
	}

	var lines []string
	for _, place := range nearby {
		if chosen[placeKey(place)] || strings.TrimSpace(place.Name) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s, a %s nearby.", place.Name, place.Category()))
		if len(lines) == maxNearbyHighlights {
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "While You're Here.\n\n" + strings.Join(lines, " ")
}

func placeKey(place tour.Place) string {
	if place.PlaceID != "" {
		return place.PlaceID
	}
	return strings.ToLower(strings.TrimSpace(place.Name))
}

// mergeCitations deduplicates the two citation lists preserving first
// appearance order: area leg first, then street leg.
func mergeCitations(area, street []string) []string {
	seen := make(map[string]bool, len(area)+len(street))
	var merged []string
	for _, url := range append(append([]string(nil), area...), street...) {
		url = strings.TrimSpace(url)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		merged = append(merged, url)
	}
	return merged
}

func describeTour(req tour.GenerateRequest) string {
	parts := []string{req.Location.StreetName}
	if req.Location.Area != "" {
		parts = append(parts, req.Location.Area)
	}
	if req.Location.City != "" {
		parts = append(parts, req.Location.City)
	}
	return fmt.Sprintf("A narrated walk along %s, shaped around %s.",
		strings.Join(parts, ", "), strings.Join(req.Interests, ", "))
}
