package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mhrezaei/newsrag/models"
)

// LoadArticlesFromFile reads a JSON array of articles for offline ingestion.
// Items without an id get a positional local_<i> id.
func LoadArticlesFromFile(path string) ([]models.Article, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read articles file: %w", err)
	}
	var items []models.Article
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse articles file: %w", err)
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = fmt.Sprintf("local_%d", i)
		}
	}
	return items, nil
}
