package embedding

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

type fakeAPI struct {
	vecDim   int
	short    int // if > 0, return only this many embeddings
	failures int32
	calls    int32
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		if n := atomic.LoadInt32(&f.failures); n > 0 {
			atomic.AddInt32(&f.failures, -1)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		for _, in := range req.Input {
			if in == "" {
				t.Error("empty input reached the remote API")
			}
		}
		n := len(req.Input)
		if f.short > 0 && f.short < n {
			n = f.short
		}
		var resp embeddingResponse
		for i := 0; i < n; i++ {
			vec := make([]float32, f.vecDim)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: vec, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func newTestClient(url string, retries int) *Client {
	c := NewClient(url, "key", "test-model", retries, time.Second, discard())
	c.retryDelay = time.Millisecond
	return c
}

func TestEmbedBatch_OrderAndLength(t *testing.T) {
	api := &fakeAPI{vecDim: 4}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	vecs, err := c.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 4 {
			t.Errorf("vector %d has dim %d, want 4", i, len(v))
		}
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: marker %v", i, v[0])
		}
	}
}

func TestEmbedBatch_EmptyInputsStayLocal(t *testing.T) {
	api := &fakeAPI{vecDim: 3}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	vecs, err := c.EmbedBatch(context.Background(), []string{"", "real text", "   "})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(vecs))
	}
	if len(vecs[0]) != 0 || len(vecs[2]) != 0 {
		t.Error("empty inputs must map to empty vectors")
	}
	if len(vecs[1]) != 3 {
		t.Errorf("real input got dim %d, want 3", len(vecs[1]))
	}
}

func TestEmbedBatch_AllEmptyNoRemoteCall(t *testing.T) {
	api := &fakeAPI{vecDim: 3}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	vecs, err := c.EmbedBatch(context.Background(), []string{"", "  "})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 0 || len(vecs[1]) != 0 {
		t.Errorf("unexpected result: %v", vecs)
	}
	if n := atomic.LoadInt32(&api.calls); n != 0 {
		t.Errorf("remote API called %d times for all-empty batch", n)
	}
}

func TestEmbedBatch_ShortResponsePads(t *testing.T) {
	api := &fakeAPI{vecDim: 3, short: 2}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(vecs))
	}
	if len(vecs[0]) == 0 || len(vecs[1]) == 0 {
		t.Error("answered slots should carry vectors")
	}
	if len(vecs[2]) != 0 {
		t.Errorf("missing slot should pad with empty vector, got dim %d", len(vecs[2]))
	}
}

func TestEmbedBatch_RetriesThenSucceeds(t *testing.T) {
	api := &fakeAPI{vecDim: 2, failures: 2}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	vecs, err := c.EmbedBatch(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("EmbedBatch failed after retries: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 2 {
		t.Errorf("unexpected vectors: %v", vecs)
	}
	if n := atomic.LoadInt32(&api.calls); n != 3 {
		t.Errorf("API called %d times, want 3", n)
	}
}

func TestEmbedBatch_ExhaustedRetriesPropagate(t *testing.T) {
	api := &fakeAPI{vecDim: 2, failures: 100}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	if _, err := c.EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected hard failure after exhausting retries")
	}
	if n := atomic.LoadInt32(&api.calls); n != 2 {
		t.Errorf("API called %d times, want 2", n)
	}
}
