package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestPostJSONSendsAuthAndDecodes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.Header.Get("X-Custom"); got != "yes" {
			t.Errorf("static header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":"hello"}`))
	}))
	defer server.Close()

	client, err := New(Config{
		ProviderID:    "test-provider",
		Endpoint:      server.URL,
		APIKey:        "secret",
		APIKeyHeader:  "Authorization",
		APIKeyPrefix:  "Bearer ",
		StaticHeaders: map[string]string{"X-Custom": "yes"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var out struct {
		Content string `json:"content"`
	}
	if err := client.PostJSON(context.Background(), map[string]string{"q": "x"}, &out); err != nil {
		t.Fatalf("post: %v", err)
	}
	if out.Content != "hello" {
		t.Fatalf("decoded content = %q", out.Content)
	}
}

func TestNon2xxBecomesProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client, err := New(Config{ProviderID: "test-provider", Endpoint: server.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = client.Post(context.Background(), map[string]string{})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", providerErr.StatusCode)
	}
	if providerErr.Message != "rate limited" {
		t.Fatalf("message = %q", providerErr.Message)
	}
	if providerErr.RetryAfter != 3*time.Second {
		t.Fatalf("retry-after = %s", providerErr.RetryAfter)
	}
	if !providerErr.Retryable() {
		t.Fatalf("429 must be retryable")
	}
}

func TestRetryableClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		retryable bool
	}{
		{status: 400, retryable: false},
		{status: 401, retryable: false},
		{status: 404, retryable: false},
		{status: 408, retryable: true},
		{status: 429, retryable: true},
		{status: 500, retryable: true},
		{status: 503, retryable: true},
		{status: 504, retryable: true},
	}
	for _, tc := range cases {
		err := &ProviderError{Provider: "p", StatusCode: tc.status}
		if got := err.Retryable(); got != tc.retryable {
			t.Fatalf("status %d retryable = %v, want %v", tc.status, got, tc.retryable)
		}
	}
}

func TestPlainTextErrorBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer server.Close()

	client, _ := New(Config{ProviderID: "test-provider", Endpoint: server.URL})
	_, err := client.Post(context.Background(), map[string]string{})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.Message != "bad input" {
		t.Fatalf("message = %q", providerErr.Message)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Endpoint: "http://x"}); err == nil {
		t.Fatalf("missing provider_id must fail")
	}
	if _, err := New(Config{ProviderID: "p"}); err == nil {
		t.Fatalf("missing endpoint must fail")
	}
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, _ := New(Config{ProviderID: "p", Endpoint: server.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Post(ctx, map[string]string{}); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestGetJSONEncodesQueryAndDecodes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.URL.Query().Get("address"); got != "Elm Street, Rivertown" {
			t.Errorf("address param = %q", got)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("api key header = %q", got)
		}
		w.Write([]byte(`{"status":"OK"}`))
	}))
	defer server.Close()

	client, err := New(Config{
		ProviderID:   "lookup",
		Endpoint:     server.URL,
		APIKey:       "secret",
		APIKeyHeader: "X-Api-Key",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var out struct {
		Status string `json:"status"`
	}
	query := url.Values{}
	query.Set("address", "Elm Street, Rivertown")
	if err := client.GetJSON(context.Background(), query, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Status != "OK" {
		t.Fatalf("status = %q", out.Status)
	}
}

func TestGetJSONNormalizesErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	client, _ := New(Config{ProviderID: "lookup", Endpoint: server.URL})
	err := client.GetJSON(context.Background(), nil, nil)
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", providerErr.StatusCode)
	}
	if providerErr.Message != "quota exceeded" {
		t.Fatalf("message = %q", providerErr.Message)
	}
}
