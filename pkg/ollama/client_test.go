package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromecollective/marketplace-backend/pkg/config"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(config.AIConfig{Host: url, Model: "llama3", Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestGenerateSendsOptionsAndReturnsResponse(t *testing.T) {
	var got generateBody
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"A sterling silver cross ring.","done":true}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "describe", Temperature: 0.6, NumPredict: 160})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "A sterling silver cross ring." {
		t.Fatalf("unexpected response %q", out)
	}
	if got.Model != "llama3" || got.Stream || got.Prompt != "describe" {
		t.Fatalf("unexpected request body %+v", got)
	}
	if got.Options == nil || got.Options.NumPredict != 160 || got.Options.Temperature != 0.6 {
		t.Fatalf("unexpected options %+v", got.Options)
	}
}

func TestGenerateEmptyPromptErrors(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if _, err := c.Generate(context.Background(), GenerateRequest{Prompt: "  "}); err == nil {
		t.Fatalf("expected error on empty prompt")
	}
}

func TestGenerateIncludesErrorBody(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3' not found"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "p"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if got := err.Error(); got != "ollama 404: model 'llama3' not found" {
		t.Fatalf("unexpected error: %q", got)
	}
}

func TestGenerateHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(t, srv.URL).Generate(ctx, GenerateRequest{Prompt: "p"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(config.AIConfig{Model: "llama3"}, nil); err == nil {
		t.Fatal("expected missing host error")
	}
	if _, err := New(config.AIConfig{Host: "http://localhost:11434"}, nil); err == nil {
		t.Fatal("expected missing model error")
	}
}

func newIPv4Server(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: unable to listen on ipv4 loopback (%v)", err)
	}
	srv := httptest.NewUnstartedServer(handler)
	srv.Listener = ln
	srv.Start()
	return srv
}
