package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

const defaultEmbeddingVersion = "v1"

// CollectionName builds the per-knowledge-base collection name. Embedding
// versions get their own namespace so re-embedding with a new model never
// mixes vector spaces.
func CollectionName(prefix string, kbID int, embeddingVersion string) string {
	if prefix == "" {
		prefix = "ragnetic"
	}
	version := strings.TrimSpace(embeddingVersion)
	if version == "" {
		version = defaultEmbeddingVersion
	}
	return fmt.Sprintf("%s_kb%d_%s", prefix, kbID, version)
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  map[string]int
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ensured:    make(map[string]int),
	}
}

func (c *Client) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, collection)
	resp, err := c.do(ctx, http.MethodPut, url, reqBody)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		c.markEnsured(collection, vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		return statusError("qdrant ensure collection status", resp)
	}
	c.markEnsured(collection, vectorSize)
	return nil
}

func (c *Client) UpsertChunks(
	ctx context.Context,
	collection string,
	doc *domain.Document,
	chunks []domain.Chunk,
	vectors [][]float32,
) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i := range chunks {
		points = append(points, point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]any{
				"doc_id":   doc.ID,
				"text":     chunks[i].Text,
				"metadata": chunks[i].Metadata,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, collection)
	resp, err := c.do(ctx, http.MethodPut, url, map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("qdrant upsert status", resp)
	}
	return nil
}

func (c *Client) DeleteByDocument(ctx context.Context, collection string, documentID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   "doc_id",
					"match": map[string]any{"value": documentID},
				},
			},
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, collection)
	resp, err := c.do(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return fmt.Errorf("qdrant delete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("qdrant delete status", resp)
	}
	return nil
}

func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
	resp, err := c.do(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, statusError("qdrant search status", resp)
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		candidate := candidateFromPayload(r.ID, r.Payload)
		candidate.DenseScore = r.Score
		out = append(out, candidate)
	}
	return out, nil
}

// Scroll pages through a collection's points. Pass the empty cursor to start;
// an empty next cursor marks the end of the collection.
func (c *Client) Scroll(ctx context.Context, collection string, cursor string, limit int) ([]domain.Candidate, string, error) {
	reqBody := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if cursor != "" {
		reqBody["offset"] = cursor
	}

	url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, collection)
	resp, err := c.do(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("qdrant scroll request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, "", statusError("qdrant scroll status", resp)
	}

	var scrollResp struct {
		Result struct {
			Points []struct {
				ID      any            `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
			NextPageOffset any `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&scrollResp); err != nil {
		return nil, "", fmt.Errorf("decode scroll response: %w", err)
	}

	out := make([]domain.Candidate, 0, len(scrollResp.Result.Points))
	for _, p := range scrollResp.Result.Points {
		out = append(out, candidateFromPayload(p.ID, p.Payload))
	}
	next := ""
	if scrollResp.Result.NextPageOffset != nil {
		next = fmt.Sprintf("%v", scrollResp.Result.NextPageOffset)
	}
	return out, next, nil
}

func (c *Client) do(ctx context.Context, method, url string, reqBody any) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) markEnsured(collection string, vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensured[collection] = vectorSize
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("%s: %s: %s", operation, resp.Status, msg)
	}
	return fmt.Errorf("%s: %s", operation, resp.Status)
}

func candidateFromPayload(id any, payload map[string]any) domain.Candidate {
	candidate := domain.Candidate{
		ID:         fmt.Sprintf("%v", id),
		Text:       getStringPayload(payload, "text"),
		DocumentID: getStringPayload(payload, "doc_id"),
	}
	if metadata, ok := payload["metadata"].(map[string]any); ok {
		candidate.Metadata = metadata
	}
	return candidate
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
