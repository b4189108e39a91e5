// Command tap-cli generates one walking tour and renders its audio to a
// local directory. Useful for trying the pipeline without the gateway.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/internal/geo/region"
	filestorage "github.com/wayline/tour-audio-pipeline/internal/storage/file"
	"github.com/wayline/tour-audio-pipeline/internal/store/memory"
	"github.com/wayline/tour-audio-pipeline/internal/tour/orchestrator"
	"github.com/wayline/tour-audio-pipeline/internal/tour/poll"
	"github.com/wayline/tour-audio-pipeline/internal/tour/render"
	"github.com/wayline/tour-audio-pipeline/providers/research/perplexity"
	"github.com/wayline/tour-audio-pipeline/providers/tts/elevenlabs"
	"github.com/wayline/tour-audio-pipeline/providers/tts/polly"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "tap-cli: %v\n", err)
		os.Exit(1)
	}
}

// summary is the JSON report printed after a successful run.
type summary struct {
	TourID          string `json:"tour_id"`
	Title           string `json:"title"`
	WordCount       int    `json:"word_count"`
	DurationMinutes int    `json:"duration_minutes"`
	LocalTimezone   string `json:"local_timezone,omitempty"`
	AudioStatus     string `json:"audio_status"`
	AudioURL        string `json:"audio_url,omitempty"`
	AudioError      string `json:"audio_error,omitempty"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("tap-cli", flag.ContinueOnError)
	flags.SetOutput(stderr)
	street := flags.String("street", "", "street to tour (required)")
	area := flags.String("area", "", "neighborhood or district")
	city := flags.String("city", "", "city")
	country := flags.String("country", "", "country")
	interests := flags.String("interests", "history", "comma-separated interests")
	outDir := flags.String("out", "audio", "directory for the rendered MP3")
	skipAudio := flags.Bool("no-audio", false, "generate the narration only")
	if err := flags.Parse(args); err != nil {
		return err
	}

	req, err := buildRequest(*street, *area, *city, *country, *interests)
	if err != nil {
		flags.Usage()
		return err
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))
	st := memory.New()

	researcher, err := perplexity.NewClientFromEnv()
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(orchestrator.Config{
		Researcher: researcher,
		Store:      st,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	narration, err := orch.GenerateTour(ctx, req)
	if err != nil {
		return err
	}

	report := summary{
		TourID:          narration.TourID,
		Title:           narration.Title,
		WordCount:       narration.WordCount,
		DurationMinutes: narration.EstimatedDurationMinutes,
		LocalTimezone:   region.Timezone(req.Location.Country),
		AudioStatus:     "skipped",
	}

	if !*skipAudio {
		job, err := renderAudio(ctx, st, logger, narration.TourID, *outDir, getenv)
		if err != nil {
			return err
		}
		report.AudioStatus = string(job.Status)
		report.AudioURL = job.AudioURL
		report.AudioError = job.ErrorMessage
	}

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// renderAudio runs the render in the background and polls the job record
// the same way a remote client would.
func renderAudio(ctx context.Context, st *memory.Store, logger *slog.Logger, tourID, outDir string, getenv func(string) string) (*tour.AudioJob, error) {
	objects, err := filestorage.New(outDir, "file://"+outDir)
	if err != nil {
		return nil, err
	}
	synth, err := buildSynth(getenv)
	if err != nil {
		return nil, err
	}
	pipeline, err := render.New(render.Config{
		Store:   st,
		Objects: objects,
		Synth:   synth,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	go func() {
		if err := pipeline.Render(context.WithoutCancel(ctx), tourID); err != nil {
			logger.Error("audio render failed", "tour_id", tourID, "error", err)
		}
	}()

	poller, err := poll.New(st, poll.Config{
		Interval:    2 * time.Second,
		MaxInterval: 10 * time.Second,
		Multiplier:  1.5,
		MaxAttempts: 90,
	})
	if err != nil {
		return nil, err
	}
	return poller.Wait(ctx, tourID)
}

func buildRequest(street, area, city, country, interests string) (tour.GenerateRequest, error) {
	if strings.TrimSpace(street) == "" {
		return tour.GenerateRequest{}, fmt.Errorf("-street is required")
	}
	parsed := parseInterests(interests)
	if len(parsed) == 0 {
		return tour.GenerateRequest{}, fmt.Errorf("-interests must name at least one interest")
	}
	return tour.GenerateRequest{
		Location: tour.Location{
			StreetName: strings.TrimSpace(street),
			Area:       strings.TrimSpace(area),
			City:       strings.TrimSpace(city),
			Country:    strings.TrimSpace(country),
		},
		Interests: parsed,
	}, nil
}

func parseInterests(raw string) []string {
	var interests []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			interests = append(interests, part)
		}
	}
	return interests
}

func buildSynth(getenv func(string) string) (render.Synthesizer, error) {
	switch provider := getenv("TAP_TTS_PROVIDER"); provider {
	case "", "elevenlabs":
		return elevenlabs.NewClientFromEnv()
	case "polly":
		return polly.NewClientFromEnv()
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", provider)
	}
}
