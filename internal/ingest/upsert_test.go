package ingest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mhrezaei/newsrag/internal/vector"
	"github.com/mhrezaei/newsrag/models"
)

// fakeIndex records upserts and serves canned search results.
type fakeIndex struct {
	batches   [][]vector.Point
	failBatch int // 1-based batch number to fail, 0 = never
	ensured   bool
}

func (f *fakeIndex) EnsureCollection(ctx context.Context) error {
	f.ensured = true
	return nil
}

func (f *fakeIndex) Upsert(ctx context.Context, points []vector.Point) error {
	f.batches = append(f.batches, points)
	if f.failBatch > 0 && len(f.batches) == f.failBatch {
		return errors.New("remote error: index unavailable")
	}
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, vec []float32, limit int) ([]models.RetrievedChunk, error) {
	return nil, nil
}

func (f *fakeIndex) points() []vector.Point {
	var all []vector.Point
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

func makePoints(n int) []vector.Point {
	points := make([]vector.Point, n)
	for i := range points {
		points[i] = vector.Point{ID: uint64(i + 1), Vector: []float32{1, 2, 3}, Payload: map[string]any{"text": "t"}}
	}
	return points
}

func TestUpserter_Batches(t *testing.T) {
	idx := &fakeIndex{}
	u := NewUpserter(idx, 64, testLogger())
	u.Pace = 0

	written := u.UpsertAll(context.Background(), makePoints(150))
	if written != 150 {
		t.Errorf("written = %d, want 150", written)
	}
	if len(idx.batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(idx.batches))
	}
	if len(idx.batches[0]) != 64 || len(idx.batches[1]) != 64 || len(idx.batches[2]) != 22 {
		t.Errorf("batch sizes: %d/%d/%d", len(idx.batches[0]), len(idx.batches[1]), len(idx.batches[2]))
	}
}

func TestUpserter_FailedBatchIsSkipped(t *testing.T) {
	idx := &fakeIndex{failBatch: 2}
	u := NewUpserter(idx, 10, testLogger())
	u.Pace = 0

	written := u.UpsertAll(context.Background(), makePoints(30))
	if written != 20 {
		t.Errorf("written = %d, want 20 (middle batch lost)", written)
	}
	if len(idx.batches) != 3 {
		t.Errorf("pipeline should continue past a failed batch, got %d batches", len(idx.batches))
	}
}

func TestUpserter_SanitizesPayloads(t *testing.T) {
	idx := &fakeIndex{}
	u := NewUpserter(idx, 10, testLogger())
	u.Pace = 0

	points := []vector.Point{{
		ID:     1,
		Vector: []float32{1},
		Payload: map[string]any{
			"title": "ok",
			"empty": nil,
			"list":  []any{"a", nil, "b"},
			"inner": map[string]any{"keep": 1, "drop": nil},
		},
	}}
	u.UpsertAll(context.Background(), points)

	got := idx.points()[0].Payload
	if _, ok := got["empty"]; ok {
		t.Error("nil value survived sanitization")
	}
	if !reflect.DeepEqual(got["list"], []any{"a", "b"}) {
		t.Errorf("list not sanitized: %v", got["list"])
	}
	inner := got["inner"].(map[string]any)
	if _, ok := inner["drop"]; ok {
		t.Error("nested nil survived sanitization")
	}
	if inner["keep"] != 1 {
		t.Errorf("nested value lost: %v", inner)
	}
}

func TestSanitizePayload(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"scalar", "x", "x"},
		{"nil", nil, nil},
		{"map drops nils", map[string]any{"a": nil, "b": 2}, map[string]any{"b": 2}},
		{"slice drops nils", []any{nil, "x"}, []any{"x"}},
		{"nested", map[string]any{"m": map[string]any{"n": nil}}, map[string]any{"m": map[string]any{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizePayload(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SanitizePayload(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
