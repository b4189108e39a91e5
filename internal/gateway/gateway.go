// Package gateway exposes tour generation and audio rendering over HTTP.
// Generation is synchronous; rendering is accepted and runs in the
// background, with the job record as the only progress surface.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/internal/geo/region"
	"github.com/wayline/tour-audio-pipeline/internal/store"
	"github.com/wayline/tour-audio-pipeline/internal/tour/orchestrator"
	"github.com/wayline/tour-audio-pipeline/internal/tour/render"
)

const maxRequestBodyBytes = 1 << 20

// Generator produces a tour narration from a request.
type Generator interface {
	GenerateTour(ctx context.Context, req tour.GenerateRequest) (*tour.Narration, error)
}

// Renderer runs audio renders. Both calls block until the job is
// terminal; the gateway runs them in background goroutines.
type Renderer interface {
	Render(ctx context.Context, tourID string) error
	Retry(ctx context.Context, tourID string) error
}

// Geocoder resolves a free-text address into a structured location.
// Optional; without one the gateway uses the location as submitted.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (tour.Location, error)
}

// Config wires the gateway's collaborators.
type Config struct {
	Generator Generator
	Renderer  Renderer
	Store     store.Store
	Geocoder  Geocoder // optional
	Logger    *slog.Logger
}

// Service is the HTTP surface over the tour pipeline.
type Service struct {
	generator Generator
	renderer  Renderer
	store     store.Store
	geocoder  Geocoder
	logger    *slog.Logger
}

// New validates the wiring and constructs the service.
func New(cfg Config) (*Service, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		generator: cfg.Generator,
		renderer:  cfg.Renderer,
		store:     cfg.Store,
		geocoder:  cfg.Geocoder,
		logger:    cfg.Logger,
	}, nil
}

// Router builds the chi router with all routes registered.
func (s *Service) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1/tours", func(r chi.Router) {
		r.Post("/", s.handleGenerateTour)
		r.Post("/{tourID}/audio", s.handleRequestAudio)
		r.Get("/{tourID}/audio", s.handleAudioStatus)
		r.Post("/{tourID}/audio/retry", s.handleRetryAudio)
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// generateResponse is the POST /v1/tours envelope. LocalTimezone is a
// convenience for players scheduling the walk; empty when the country
// is not in the regional table.
type generateResponse struct {
	Tour          *tour.Narration `json:"tour"`
	Location      tour.Location   `json:"location"`
	LocalTimezone string          `json:"local_timezone,omitempty"`
}

func (s *Service) handleGenerateTour(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	if err := validateGenerateBody(raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req tour.GenerateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	req.Location = s.resolveLocation(r.Context(), req.Location)

	narration, err := s.generator.GenerateTour(r.Context(), req)
	if err != nil {
		var genErr *orchestrator.GenerationFailedError
		if errors.As(err, &genErr) {
			s.logger.Error("tour generation failed", "leg", genErr.Leg, "error", genErr.Err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, generateResponse{
		Tour:          narration,
		Location:      req.Location,
		LocalTimezone: region.Timezone(req.Location.Country),
	})
}

// resolveLocation enriches a submitted location through the geocoder
// when one is configured and the caller gave no coordinates. Geocoding
// failures fall back to the submitted location; generation can proceed
// on the street name alone.
func (s *Service) resolveLocation(ctx context.Context, loc tour.Location) tour.Location {
	if s.geocoder == nil || (loc.Latitude != 0 || loc.Longitude != 0) {
		return loc
	}
	address := loc.FormattedAddress
	if address == "" {
		address = loc.StreetName
		if loc.City != "" {
			address += ", " + loc.City
		}
	}
	resolved, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		s.logger.Warn("geocoding failed, using submitted location", "address", address, "error", err)
		return loc
	}
	// The caller's street name wins; the geocoder fills the rest.
	if loc.StreetName != "" {
		resolved.StreetName = loc.StreetName
	}
	if loc.Area != "" {
		resolved.Area = loc.Area
	}
	return resolved
}

func (s *Service) handleRequestAudio(w http.ResponseWriter, r *http.Request) {
	tourID := chi.URLParam(r, "tourID")
	if _, err := s.store.GetNarration(r.Context(), tourID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no narration for tour "+tourID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job, err := s.loadJob(r.Context(), tourID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch job.Status {
	case tour.StatusProcessing:
		writeError(w, http.StatusConflict, "audio render already in progress")
		return
	case tour.StatusCompleted:
		writeJSON(w, http.StatusOK, job)
		return
	case tour.StatusFailed:
		writeError(w, http.StatusConflict, "previous render failed; use the retry endpoint")
		return
	}

	s.startRender(r.Context(), tourID, s.renderer.Render)
	job.Status = tour.StatusProcessing
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Service) handleAudioStatus(w http.ResponseWriter, r *http.Request) {
	tourID := chi.URLParam(r, "tourID")
	job, err := s.store.GetAudioJob(r.Context(), tourID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no audio job for tour "+tourID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Service) handleRetryAudio(w http.ResponseWriter, r *http.Request) {
	tourID := chi.URLParam(r, "tourID")
	job, err := s.store.GetAudioJob(r.Context(), tourID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no audio job for tour "+tourID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job.Status != tour.StatusFailed {
		writeError(w, http.StatusConflict, fmt.Sprintf("retry is only legal from failed, job is %s", job.Status))
		return
	}

	s.startRender(r.Context(), tourID, s.renderer.Retry)
	job.Status = tour.StatusProcessing
	job.ErrorMessage = ""
	writeJSON(w, http.StatusAccepted, job)
}

// startRender runs one render in the background. The job record is the
// caller's progress surface; errors here are logged, not returned.
// ErrRenderInFlight can still occur when two accepts race; the second
// goroutine loses and the record stays consistent.
func (s *Service) startRender(reqCtx context.Context, tourID string, run func(context.Context, string) error) {
	ctx := context.WithoutCancel(reqCtx)
	go func() {
		if err := run(ctx, tourID); err != nil {
			if errors.Is(err, render.ErrRenderInFlight) {
				s.logger.Info("duplicate render request dropped", "tour_id", tourID)
				return
			}
			s.logger.Error("audio render failed", "tour_id", tourID, "error", err)
		}
	}()
}

func (s *Service) loadJob(ctx context.Context, tourID string) (*tour.AudioJob, error) {
	job, err := s.store.GetAudioJob(ctx, tourID)
	if errors.Is(err, store.ErrNotFound) {
		return &tour.AudioJob{TourID: tourID, Status: tour.StatusPending}, nil
	}
	return job, err
}

// Serve runs the gateway until ctx is cancelled, then drains in-flight
// requests within the shutdown grace period.
func (s *Service) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
