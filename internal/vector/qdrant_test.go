package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	var created bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/news", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("PUT /collections/news", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Vectors.Size != 768 || req.Vectors.Distance != "Cosine" {
			t.Errorf("unexpected create request: %+v", req)
		}
		created = true
		fmt.Fprint(w, `{"result":true}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	q := NewQdrantIndex(srv.URL, "", "news", 768, time.Second)
	if err := q.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
	if !created {
		t.Error("collection was not created")
	}
}

func TestEnsureCollection_ExistingIsNoop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/news", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"status":"green"}}`)
	})
	mux.HandleFunc("PUT /collections/news", func(w http.ResponseWriter, r *http.Request) {
		t.Error("existing collection must not be re-created")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	q := NewQdrantIndex(srv.URL, "", "news", 768, time.Second)
	if err := q.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
}

func TestUpsert_SendsPointsAndWaits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("wait") != "true" {
			t.Error("upsert must wait for acknowledgment")
		}
		if got := r.Header.Get("api-key"); got != "secret" {
			t.Errorf("api-key header = %q", got)
		}
		var req struct {
			Points []struct {
				ID      uint64         `json:"id"`
				Vector  []float32      `json:"vector"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad upsert body: %v", err)
		}
		if len(req.Points) != 2 {
			t.Errorf("got %d points, want 2", len(req.Points))
		}
		if req.Points[0].Payload["title"] != "T" {
			t.Errorf("payload lost: %+v", req.Points[0].Payload)
		}
		fmt.Fprint(w, `{"result":{"status":"acknowledged"}}`)
	}))
	defer srv.Close()

	q := NewQdrantIndex(srv.URL, "secret", "news", 3, time.Second)
	points := []Point{
		{ID: 1, Vector: []float32{1, 2, 3}, Payload: map[string]any{"title": "T"}},
		{ID: 2, Vector: []float32{4, 5, 6}, Payload: map[string]any{"title": "U"}},
	}
	if err := q.Upsert(context.Background(), points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestUpsert_EmptyIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty batch")
	}))
	defer srv.Close()

	q := NewQdrantIndex(srv.URL, "", "news", 3, time.Second)
	if err := q.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("Upsert of empty batch failed: %v", err)
	}
}

func TestSearch_FlattensPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["with_payload"] != true {
			t.Error("search must request payloads")
		}
		if req["limit"].(float64) != 4 {
			t.Errorf("limit = %v, want 4", req["limit"])
		}
		fmt.Fprint(w, `{"result":[
			{"score":0.91,"payload":{"text":"body one","title":"A","url":"https://a","chunk_id":"chunk_0"}},
			{"score":0.77,"payload":{"text":"body two"}}
		]}`)
	}))
	defer srv.Close()

	q := NewQdrantIndex(srv.URL, "", "news", 3, time.Second)
	chunks, err := q.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Title != "A" || chunks[0].Score != 0.91 || chunks[0].ChunkID != "chunk_0" {
		t.Errorf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[1].Title != "unknown" || chunks[1].URL != "unknown" {
		t.Errorf("missing payload fields should default: %+v", chunks[1])
	}
}

func TestSearch_ErrorPayloadSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":{"error":"wrong vector size"}}`)
	}))
	defer srv.Close()

	q := NewQdrantIndex(srv.URL, "", "news", 3, time.Second)
	_, err := q.Search(context.Background(), []float32{1}, 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "wrong vector size"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should include remote payload %q", err, want)
	}
}
