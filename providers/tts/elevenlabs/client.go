// Package elevenlabs renders narration chunks to MP3 audio over the
// ElevenLabs HTTP API.
package elevenlabs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wayline/tour-audio-pipeline/providers/common/httpclient"
)

const ProviderID = "tts-elevenlabs"

// maxChunkChars stays under the provider's 10000-character request limit
// to leave headroom for encoding overhead.
const maxChunkChars = 9500

type Config struct {
	APIKey   string
	Endpoint string
	VoiceID  string
	ModelID  string
	Timeout  time.Duration
}

func ConfigFromEnv() Config {
	voiceID := defaultString(os.Getenv("TAP_TTS_ELEVENLABS_VOICE_ID"), "EXAVITQu4vr4xnSDxMaL")
	return Config{
		APIKey:   os.Getenv("TAP_TTS_ELEVENLABS_API_KEY"),
		Endpoint: defaultString(os.Getenv("TAP_TTS_ELEVENLABS_ENDPOINT"), "https://api.elevenlabs.io/v1/text-to-speech/"+voiceID),
		VoiceID:  voiceID,
		ModelID:  defaultString(os.Getenv("TAP_TTS_ELEVENLABS_MODEL"), "eleven_multilingual_v2"),
		Timeout:  60 * time.Second,
	}
}

// Client synthesizes one chunk of text per call, returning raw MP3 bytes.
type Client struct {
	cfg  Config
	http *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	http, err := httpclient.New(httpclient.Config{
		ProviderID:    ProviderID,
		Endpoint:      cfg.Endpoint,
		APIKey:        cfg.APIKey,
		APIKeyHeader:  "xi-api-key",
		Timeout:       cfg.Timeout,
		StaticHeaders: map[string]string{"Accept": "audio/mpeg"},
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: http}, nil
}

func NewClientFromEnv() (*Client, error) {
	return NewClient(ConfigFromEnv())
}

// MaxChunkChars returns the per-request character ceiling for chunking.
func (c *Client) MaxChunkChars() int {
	return maxChunkChars
}

// Synthesize renders one text chunk to MP3 bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: text is required", ProviderID)
	}
	audio, err := c.http.Post(ctx, map[string]any{
		"model_id": c.cfg.ModelID,
		"text":     text,
	})
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%s: provider returned empty audio", ProviderID)
	}
	return audio, nil
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
