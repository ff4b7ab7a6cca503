package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	client, err := New("test-key", Options{BaseURL: server.URL + "/v1"})
	if err != nil {
		server.Close()
		t.Fatalf("New() error = %v", err)
	}
	return client, server
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New("  ", Options{}); err == nil {
		t.Fatalf("expected error for blank api key")
	}
}

func TestGenerateSendsSystemMessage(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" grounded answer "}}]}`))
	}))
	defer server.Close()

	answer, err := client.Generate(context.Background(), "question?", "stay grounded")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "grounded answer" {
		t.Fatalf("Generate() = %q", answer)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "stay grounded" {
		t.Fatalf("unexpected system message: %+v", captured.Messages[0])
	}
	if captured.Messages[1].Role != "user" || captured.Messages[1].Content != "question?" {
		t.Fatalf("unexpected user message: %+v", captured.Messages[1])
	}
}

func TestEmbedMapsVectors(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]},{"embedding":[0.3,0.4]}]}`))
	}))
	defer server.Close()

	vectors, err := client.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
	if vectors[1][0] != 0.3 {
		t.Fatalf("vectors[1][0] = %v", vectors[1][0])
	}
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1]}]}`))
	}))
	defer server.Close()

	if _, err := client.Embed(context.Background(), []string{"one", "two"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
