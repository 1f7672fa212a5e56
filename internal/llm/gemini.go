// Package llm generates answers from retrieved context via a hosted model.
package llm

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

// FallbackAnswer is returned when the model comes back with no candidates.
const FallbackAnswer = "Sorry, I couldn't generate an answer."

// AnswerGenerator is the narrow interface the chat service consumes.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiClient implements AnswerGenerator against the generateContent API.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGeminiClient(baseURL, apiKey, model string, timeout time.Duration) *GeminiClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}}}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var apiResp generateResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return FallbackAnswer, nil
	}
	return apiResp.Candidates[0].Content.Parts[0].Text, nil
}

// BuildPrompt assembles the grounded prompt: numbered SOURCE blocks, the
// user question and the citation instruction.
func BuildPrompt(chunks []models.RetrievedChunk, query string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant that answers user questions using only the information in the supplied sources. Cite sources in square brackets like [1] where the number corresponds to the source.\n\n")
	for i, c := range chunks {
		fmt.Fprintf(&sb, "SOURCE[%d]: %s (%s)\n%s", i+1, c.Title, c.URL, c.Text)
		if i < len(chunks)-1 {
			sb.WriteString("\n\n")
		}
	}
	fmt.Fprintf(&sb, "\n\nQuestion: %s\n\nAnswer concisely and include source citations.", query)
	return sb.String()
}
