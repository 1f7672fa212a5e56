package ingest

import (
	"fmt"
	"strings"

	"github.com/mhrezaei/newsrag/models"
)

// ChunkText splits text into overlapping windows of at most size characters.
// Windows are emitted left to right; consecutive windows share overlap
// characters. Slices that are empty after trimming are dropped. The function
// is pure: same input and parameters always produce the same chunks.
func ChunkText(text string, size, overlap int) []models.Chunk {
	var chunks []models.Chunk
	start, idx := 0, 0

	for start < len(text) {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		slice := strings.TrimSpace(text[start:end])
		if slice != "" {
			chunks = append(chunks, models.Chunk{ID: fmt.Sprintf("chunk_%d", idx), Text: slice})
			idx++
		}
		if end == len(text) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
