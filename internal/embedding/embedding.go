// Package embedding turns batches of text into vectors via a hosted
// Jina-style /v1/embeddings endpoint. The one invariant everything else
// leans on: the output slice always has the same length and order as the
// input, with empty vectors standing in for inputs that were empty or that
// the remote API failed to answer for.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Provider is the narrow interface the pipeline and the query path consume.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Client calls a Jina-compatible embeddings API with retry and exponential
// backoff.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(endpoint, apiKey, model string, maxRetries int, timeout time.Duration, logger *log.Logger) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EMBED] ", log.LstdFlags)
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		maxRetries: maxRetries,
		retryDelay: time.Second,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed is the single-text convenience used by the query path.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one remote call. Empty or whitespace-only
// inputs are never sent to the API; their slots come back as empty vectors.
// The request is retried with exponential backoff up to the configured
// attempt count and the final failure propagates to the caller.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Drop empties but remember where everything came from.
	indexMap := make([]int, len(texts))
	var requests []string
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			indexMap[i] = -1
			continue
		}
		indexMap[i] = len(requests)
		requests = append(requests, t)
	}

	result := make([][]float32, len(texts))
	for i := range result {
		result[i] = []float32{}
	}
	if len(requests) == 0 {
		return result, nil
	}

	vecs, err := c.callWithRetry(ctx, requests)
	if err != nil {
		return nil, err
	}

	for i, m := range indexMap {
		if m < 0 {
			continue
		}
		if m < len(vecs) && vecs[m] != nil {
			result[i] = vecs[m]
		}
	}
	return result, nil
}

func (c *Client) callWithRetry(ctx context.Context, requests []string) ([][]float32, error) {
	delay := c.retryDelay
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		vecs, err := c.callOnce(ctx, requests)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		c.logger.Printf("WARN embedding attempt %d failed, retries left: %d: %v", attempt, c.maxRetries-attempt, err)
		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("embedding batch of %d texts: %w", len(requests), lastErr)
}

func (c *Client) callOnce(ctx context.Context, requests []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: requests, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var apiResp embeddingResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// A short response must not misalign later slots: pad with empty
	// vectors instead of shifting.
	vecs := make([][]float32, len(requests))
	for i := range vecs {
		if i < len(apiResp.Data) && len(apiResp.Data[i].Embedding) > 0 {
			vecs[i] = apiResp.Data[i].Embedding
		} else {
			vecs[i] = []float32{}
		}
	}
	return vecs, nil
}
