// Package httpclient is the shared JSON-over-HTTP layer under every
// provider adapter: request shaping, auth headers, bounded timeouts, and
// normalization of non-2xx responses into typed provider errors.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const errorBodySampleBytes = 4096

// ProviderError reports a non-2xx provider response. It carries the
// provider identity, the HTTP status, and the provider's own message.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: provider returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: provider returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the failure class is worth retrying.
// Retrying remains a caller decision; the client never retries itself.
func (e *ProviderError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusGatewayTimeout:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// Config configures one provider endpoint.
type Config struct {
	ProviderID    string
	Endpoint      string
	APIKey        string
	APIKeyHeader  string
	APIKeyPrefix  string
	StaticHeaders map[string]string
	Timeout       time.Duration
}

// Client posts JSON to a single provider endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// New validates the config and constructs a client with a bounded
// timeout. Provider calls can legitimately take tens of seconds, so the
// default is generous; it exists to prevent indefinite hangs, not to
// race the provider.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ProviderID) == "" {
		return nil, fmt.Errorf("provider_id is required")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("%s: endpoint is required", cfg.ProviderID)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.StaticHeaders == nil {
		cfg.StaticHeaders = map[string]string{}
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// ProviderID returns the configured provider identity.
func (c *Client) ProviderID() string {
	return c.cfg.ProviderID
}

// PostJSON posts body as JSON and decodes a JSON response into out.
func (c *Client) PostJSON(ctx context.Context, body any, out any) error {
	raw, err := c.Post(ctx, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.cfg.ProviderID, err)
	}
	return nil
}

// Post posts body as JSON and returns the raw response bytes. Used by
// TTS adapters where the success payload is binary audio.
func (c *Client) Post(ctx context.Context, body any) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", c.cfg.ProviderID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.cfg.ProviderID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// GetJSON issues a GET with the given query string and decodes a JSON
// response into out. Used by lookup-style collaborators.
func (c *Client) GetJSON(ctx context.Context, query url.Values, out any) error {
	endpoint := c.cfg.Endpoint
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.cfg.ProviderID, err)
	}
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.cfg.ProviderID, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.cfg.APIKeyHeader != "" && c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKeyPrefix+c.cfg.APIKey)
	}
	for key, value := range c.cfg.StaticHeaders {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, normalizeTransportError(c.cfg.ProviderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Provider:   c.cfg.ProviderID,
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(resp.Body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.cfg.ProviderID, err)
	}
	return raw, nil
}

func normalizeTransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: request cancelled: %w", provider, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: request timed out: %w", provider, err)
	}
	return fmt.Errorf("%s: transport error: %w", provider, err)
}

// extractErrorMessage pulls a human-readable message from a provider
// error body, preferring common JSON error envelopes over raw text.
func extractErrorMessage(body io.Reader) string {
	sample, err := io.ReadAll(io.LimitReader(body, errorBodySampleBytes))
	if err != nil || len(sample) == 0 {
		return ""
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(sample, &envelope) == nil {
		for _, candidate := range []string{envelope.Error.Message, envelope.Message, envelope.Detail} {
			if strings.TrimSpace(candidate) != "" {
				return strings.TrimSpace(candidate)
			}
		}
	}
	return strings.TrimSpace(string(sample))
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 1 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
