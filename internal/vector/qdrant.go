// Package vector talks to the external vector index. Retrieval itself is
// fully delegated to the index; this package only shapes requests and
// responses.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mhrezaei/newsrag/models"
)

// Point is one vector plus payload destined for the index. ID must be unique
// across the lifetime of an ingestion run.
type Point struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Index is the narrow interface the pipeline and the query path consume, so
// tests can substitute fakes.
type Index interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vec []float32, limit int) ([]models.RetrievedChunk, error)
}

// QdrantIndex implements Index against Qdrant's HTTP API.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	vectorSize int
	client     *http.Client
}

func NewQdrantIndex(url, apiKey, collection string, vectorSize int, timeout time.Duration) *QdrantIndex {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QdrantIndex{
		baseURL:    strings.TrimRight(url, "/"),
		apiKey:     apiKey,
		collection: collection,
		vectorSize: vectorSize,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection with cosine distance when it does
// not exist yet.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	if _, err := q.doRequest(ctx, http.MethodGet, "/collections/"+q.collection, nil); err == nil {
		return nil
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     q.vectorSize,
			"distance": "Cosine",
		},
	}
	if _, err := q.doRequest(ctx, http.MethodPut, "/collections/"+q.collection, req); err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	return nil
}

// Upsert writes points and waits for acknowledgment.
func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	payload := make([]map[string]any, 0, len(points))
	for _, p := range points {
		payload = append(payload, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}
	_, err := q.doRequest(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", map[string]any{"points": payload})
	return err
}

// Search runs a top-limit cosine search and flattens payloads into
// RetrievedChunks.
func (q *QdrantIndex) Search(ctx context.Context, vec []float32, limit int) ([]models.RetrievedChunk, error) {
	if limit <= 0 {
		limit = 3
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        limit,
		"with_payload": true,
	}
	data, err := q.doRequest(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		chunks = append(chunks, models.RetrievedChunk{
			Text:    payloadString(r.Payload, "text", ""),
			Title:   payloadString(r.Payload, "title", "unknown"),
			URL:     payloadString(r.Payload, "url", "unknown"),
			ChunkID: payloadString(r.Payload, "chunk_id", ""),
			Score:   r.Score,
		})
	}
	return chunks, nil
}

func payloadString(payload map[string]any, key, def string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (q *QdrantIndex) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
