package ingest

import (
	"context"
	"log"
	"time"

	"github.com/mhrezaei/newsrag/internal/telemetry"
	"github.com/mhrezaei/newsrag/internal/vector"
)

// Upserter writes points to the vector index in bounded batches, waiting for
// acknowledgment between batches. A failed batch is logged with the remote
// error and skipped; ingestion is idempotent and re-runnable, so a lost batch
// is recovered by re-ingesting.
type Upserter struct {
	Index     vector.Index
	BatchSize int
	Pace      time.Duration
	Logger    *log.Logger
}

func NewUpserter(index vector.Index, batchSize int, logger *log.Logger) *Upserter {
	if batchSize <= 0 {
		batchSize = 128
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[UPSERT] ", log.LstdFlags)
	}
	return &Upserter{Index: index, BatchSize: batchSize, Pace: 100 * time.Millisecond, Logger: logger}
}

// UpsertAll pushes points batch by batch and returns how many were written.
func (u *Upserter) UpsertAll(ctx context.Context, points []vector.Point) int {
	written := 0
	for i := 0; i < len(points); i += u.BatchSize {
		end := i + u.BatchSize
		if end > len(points) {
			end = len(points)
		}
		batch := make([]vector.Point, 0, end-i)
		for _, p := range points[i:end] {
			p.Payload = SanitizePayload(p.Payload).(map[string]any)
			batch = append(batch, p)
		}

		u.Logger.Printf("upserting batch %d (%d points)", i/u.BatchSize+1, len(batch))
		if err := u.Index.Upsert(ctx, batch); err != nil {
			u.Logger.Printf("ERROR failed to upsert batch %d: %v", i/u.BatchSize+1, err)
			telemetry.ItemsSkipped.WithLabelValues("upsert").Add(float64(len(batch)))
			continue
		}
		written += len(batch)
		telemetry.PointsUpserted.Add(float64(len(batch)))

		select {
		case <-ctx.Done():
			return written
		case <-time.After(u.Pace):
		}
	}
	return written
}

// SanitizePayload strips nil values from maps and slices recursively so the
// remote store never receives nulls.
func SanitizePayload(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		clean := make(map[string]any, len(val))
		for k, item := range val {
			if sv := SanitizePayload(item); sv != nil {
				clean[k] = sv
			}
		}
		return clean
	case []any:
		clean := make([]any, 0, len(val))
		for _, item := range val {
			if sv := SanitizePayload(item); sv != nil {
				clean = append(clean, sv)
			}
		}
		return clean
	default:
		return val
	}
}
