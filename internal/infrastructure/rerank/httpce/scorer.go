// Package httpce scores query/document pairs against a cross-encoder
// service speaking the text-embeddings-inference rerank protocol.
package httpce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Scorer struct {
	endpoint   string
	httpClient *http.Client
}

func New(endpoint string) *Scorer {
	return &Scorer{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one relevance score per document, in document order.
func (s *Scorer) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: docs})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("rerank status: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(results) != len(docs) {
		return nil, fmt.Errorf("rerank results/docs mismatch: %d/%d", len(results), len(docs))
	}

	scores := make([]float64, len(docs))
	for _, result := range results {
		if result.Index < 0 || result.Index >= len(scores) {
			return nil, fmt.Errorf("rerank result index out of range: %d", result.Index)
		}
		scores[result.Index] = result.Score
	}
	return scores, nil
}
