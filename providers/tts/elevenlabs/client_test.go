package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wayline/tour-audio-pipeline/providers/common/httpclient"
)

func TestSynthesizeReturnsAudioBytes(t *testing.T) {
	t.Parallel()

	audio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "el-key" {
			t.Errorf("api key header = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["text"] != "Welcome to the tour." {
			t.Errorf("text = %v", body["text"])
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "el-key", Endpoint: server.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	got, err := client.Synthesize(context.Background(), "Welcome to the tour.")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Fatalf("audio bytes differ")
	}
}

func TestSynthesizeProviderFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{Endpoint: server.URL})
	_, err := client.Synthesize(context.Background(), "text")
	var providerErr *httpclient.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", providerErr.StatusCode)
	}
}

func TestSynthesizeRejectsBlankText(t *testing.T) {
	t.Parallel()

	client, _ := NewClient(Config{Endpoint: "http://localhost:0"})
	if _, err := client.Synthesize(context.Background(), "   "); err == nil {
		t.Fatalf("blank text must fail before any network call")
	}
}

func TestMaxChunkCharsUnderProviderLimit(t *testing.T) {
	t.Parallel()

	client, _ := NewClient(Config{Endpoint: "http://localhost:0"})
	if limit := client.MaxChunkChars(); limit >= 10000 {
		t.Fatalf("chunk ceiling %d must stay strictly under the provider limit", limit)
	}
}
