package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mhrezaei/newsrag/models"
)

func TestBuildPrompt(t *testing.T) {
	chunks := []models.RetrievedChunk{
		{Title: "Markets", URL: "https://example.com/m", Text: "stocks rose"},
		{Title: "Energy", URL: "https://example.com/e", Text: "oil fell"},
	}
	prompt := BuildPrompt(chunks, "what happened today?")

	for _, want := range []string{
		"SOURCE[1]: Markets (https://example.com/m)\nstocks rose",
		"SOURCE[2]: Energy (https://example.com/e)\noil fell",
		"Question: what happened today?",
		"include source citations",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}
	if strings.Index(prompt, "SOURCE[1]") > strings.Index(prompt, "SOURCE[2]") {
		t.Error("sources out of order")
	}
}

func TestBuildPrompt_NoSources(t *testing.T) {
	prompt := BuildPrompt(nil, "anything new?")
	if !strings.Contains(prompt, "Question: anything new?") {
		t.Errorf("prompt missing question: %s", prompt)
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-goog-api-key"); got != "g-key" {
			t.Errorf("api key header = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "the prompt" {
			t.Errorf("prompt not forwarded: %+v", req)
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"the answer [1]"}]}}]}`)
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "g-key", "gemini-2.0-flash", time.Second)
	answer, err := c.Generate(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "the answer [1]" {
		t.Errorf("answer = %q", answer)
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "k", "m", time.Second)
	answer, err := c.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != FallbackAnswer {
		t.Errorf("answer = %q, want fallback", answer)
	}
}

func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"key invalid"}}`)
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "k", "m", time.Second)
	if _, err := c.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected error from non-200 response")
	}
}
