// Package perplexity issues web-search-augmented LLM queries and returns
// narrative text with source citations.
package perplexity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/providers/common/httpclient"
)

const ProviderID = "research-perplexity"

// ErrEmptyResult indicates the provider answered 2xx but returned no
// usable narrative text.
var ErrEmptyResult = errors.New("research provider returned no usable content")

type Config struct {
	APIKey        string
	Endpoint      string
	Model         string
	RecencyFilter string
	SearchContext string
	Timeout       time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:        os.Getenv("TAP_RESEARCH_API_KEY"),
		Endpoint:      defaultString(os.Getenv("TAP_RESEARCH_ENDPOINT"), "https://api.perplexity.ai/chat/completions"),
		Model:         defaultString(os.Getenv("TAP_RESEARCH_MODEL"), "sonar"),
		RecencyFilter: defaultString(os.Getenv("TAP_RESEARCH_RECENCY"), "month"),
		SearchContext: defaultString(os.Getenv("TAP_RESEARCH_SEARCH_CONTEXT"), "high"),
		Timeout:       120 * time.Second,
	}
}

// Client performs one research query per call. It holds no local state
// beyond the HTTP client.
type Client struct {
	cfg  Config
	http *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "sonar"
	}
	if cfg.RecencyFilter == "" {
		cfg.RecencyFilter = "month"
	}
	if cfg.SearchContext == "" {
		cfg.SearchContext = "high"
	}
	http, err := httpclient.New(httpclient.Config{
		ProviderID:   ProviderID,
		Endpoint:     cfg.Endpoint,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Bearer ",
		Timeout:      cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: http}, nil
}

func NewClientFromEnv() (*Client, error) {
	return NewClient(ConfigFromEnv())
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Research runs one search-augmented completion. Non-2xx responses
// surface as *httpclient.ProviderError; an empty answer as
// ErrEmptyResult. The client never retries.
func (c *Client) Research(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (tour.ResearchResult, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return tour.ResearchResult{}, fmt.Errorf("%s: user prompt is required", ProviderID)
	}
	if maxTokens < 1 {
		return tour.ResearchResult{}, fmt.Errorf("%s: max tokens must be >= 1, got %d", ProviderID, maxTokens)
	}

	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"search_recency_filter": c.cfg.RecencyFilter,
		"web_search_options": map[string]string{
			"search_context_size": c.cfg.SearchContext,
		},
	}

	var resp chatResponse
	if err := c.http.PostJSON(ctx, body, &resp); err != nil {
		return tour.ResearchResult{}, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return tour.ResearchResult{}, ErrEmptyResult
	}
	return tour.ResearchResult{
		Content:   resp.Choices[0].Message.Content,
		Citations: resp.Citations,
	}, nil
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
