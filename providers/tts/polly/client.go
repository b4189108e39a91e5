// Package polly renders narration chunks to MP3 audio via Amazon Polly.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/wayline/tour-audio-pipeline/providers/common/httpclient"
)

const ProviderID = "tts-amazon-polly"

// maxChunkChars stays under Polly's 3000-billed-character request limit.
const maxChunkChars = 2900

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type Config struct {
	Region  string
	VoiceID string
	Engine  string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Region:  defaultString(os.Getenv("TAP_TTS_POLLY_REGION"), defaultString(os.Getenv("AWS_REGION"), "us-east-1")),
		VoiceID: defaultString(os.Getenv("TAP_TTS_POLLY_VOICE"), "Joanna"),
		Engine:  defaultString(os.Getenv("TAP_TTS_POLLY_ENGINE"), "neural"),
		Timeout: 60 * time.Second,
	}
}

// Client synthesizes one chunk of text per call, returning raw MP3 bytes.
// The underlying Polly client is created lazily so tests can inject a
// fake through NewClientWithSynth.
type Client struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

func NewClient(cfg Config) (*Client, error) {
	return NewClientWithSynth(cfg, nil)
}

func NewClientWithSynth(cfg Config, client synthClient) (*Client, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "Joanna"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{client: client, cfg: cfg}, nil
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
	client, err := c.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(c.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(c.cfg.VoiceID),
	})
	if err != nil {
		return nil, normalizePollyError(err)
	}
	if output == nil || output.AudioStream == nil {
		return nil, fmt.Errorf("%s: provider returned empty audio", ProviderID)
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("%s: read audio stream: %w", ProviderID, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%s: provider returned empty audio", ProviderID)
	}
	return audio, nil
}

// normalizePollyError maps SDK failures onto the same ProviderError shape
// the HTTP adapters produce so callers classify TTS failures uniformly.
func normalizePollyError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		status := 502
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException":
			status = 429
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException",
			"MarksNotSupportedForFormatException", "InvalidSampleRateException":
			status = 400
		}
		return &httpclient.ProviderError{Provider: ProviderID, StatusCode: status, Message: apiErr.ErrorMessage()}
	}
	return fmt.Errorf("%s: %w", ProviderID, err)
}

func (c *Client) resolveClient(ctx context.Context) (synthClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	c.client = polly.NewFromConfig(awsCfg)
	return c.client, nil
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
