// Command tap-gateway serves the walking-tour pipeline over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wayline/tour-audio-pipeline/internal/gateway"
	"github.com/wayline/tour-audio-pipeline/internal/geo"
	"github.com/wayline/tour-audio-pipeline/internal/storage"
	filestorage "github.com/wayline/tour-audio-pipeline/internal/storage/file"
	s3storage "github.com/wayline/tour-audio-pipeline/internal/storage/s3"
	"github.com/wayline/tour-audio-pipeline/internal/store"
	"github.com/wayline/tour-audio-pipeline/internal/store/memory"
	"github.com/wayline/tour-audio-pipeline/internal/store/sqlite"
	"github.com/wayline/tour-audio-pipeline/internal/tour/orchestrator"
	"github.com/wayline/tour-audio-pipeline/internal/tour/render"
	"github.com/wayline/tour-audio-pipeline/providers/research/perplexity"
	"github.com/wayline/tour-audio-pipeline/providers/tts/elevenlabs"
	"github.com/wayline/tour-audio-pipeline/providers/tts/polly"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "tap-gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("tap-gateway", flag.ContinueOnError)
	flags.SetOutput(stderr)
	addr := flags.String("addr", defaultString(getenv("TAP_GATEWAY_ADDR"), ":8080"), "listen address")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	st, closeStore, err := buildStore(getenv)
	if err != nil {
		return err
	}
	defer closeStore()

	objects, err := buildObjects(getenv)
	if err != nil {
		return err
	}
	synth, err := buildSynth(getenv)
	if err != nil {
		return err
	}
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
	pipeline, err := render.New(render.Config{
		Store:   st,
		Objects: objects,
		Synth:   synth,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	cfg := gateway.Config{
		Generator: orch,
		Renderer:  pipeline,
		Store:     st,
		Logger:    logger,
	}
	if getenv("TAP_GEO_API_KEY") != "" {
		geocoder, err := geo.NewGeocoder(geo.ConfigFromEnv())
		if err != nil {
			return err
		}
		cfg.Geocoder = geocoder
	}

	svc, err := gateway.New(cfg)
	if err != nil {
		return err
	}
	return svc.Serve(ctx, *addr)
}

// buildStore picks sqlite when TAP_DB_PATH is set, memory otherwise.
func buildStore(getenv func(string) string) (store.Store, func() error, error) {
	if path := getenv("TAP_DB_PATH"); path != "" {
		st, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	return memory.New(), func() error { return nil }, nil
}

// buildObjects picks S3 when TAP_S3_BUCKET is set, a local directory
// otherwise.
func buildObjects(getenv func(string) string) (storage.ObjectStore, error) {
	if bucket := getenv("TAP_S3_BUCKET"); bucket != "" {
		return s3storage.New(s3storage.Config{
			Region:        getenv("TAP_S3_REGION"),
			Bucket:        bucket,
			PublicBaseURL: getenv("TAP_S3_PUBLIC_BASE_URL"),
		})
	}
	dir := defaultString(getenv("TAP_AUDIO_DIR"), "audio")
	baseURL := defaultString(getenv("TAP_AUDIO_BASE_URL"), "http://localhost:8080/audio")
	return filestorage.New(dir, baseURL)
}

// buildSynth picks the TTS backend by TAP_TTS_PROVIDER; elevenlabs is
// the default.
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

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
