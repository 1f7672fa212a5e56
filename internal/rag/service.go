// Package rag is the query-time flow: embed the question, retrieve the
// top-k chunks, ask the model for a grounded answer.
package rag

import (
	"context"
	"fmt"
	"log"

	"github.com/mhrezaei/newsrag/internal/embedding"
	"github.com/mhrezaei/newsrag/internal/llm"
	"github.com/mhrezaei/newsrag/internal/vector"
	"github.com/mhrezaei/newsrag/models"
)

const defaultTopK = 4

type Service struct {
	Embedder  embedding.Provider
	Index     vector.Index
	Generator llm.AnswerGenerator
	TopK      int
	Logger    *log.Logger
}

func NewService(embedder embedding.Provider, index vector.Index, generator llm.AnswerGenerator, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[RAG] ", log.LstdFlags)
	}
	return &Service{
		Embedder:  embedder,
		Index:     index,
		Generator: generator,
		TopK:      defaultTopK,
		Logger:    logger,
	}
}

// Answer runs one query end to end. A retrieval failure degrades to an
// unsourced answer rather than failing the request; embedding and generation
// failures surface to the caller.
func (s *Service) Answer(ctx context.Context, query string) (string, []models.Source, error) {
	queryVec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return "", nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := s.Index.Search(ctx, queryVec, s.TopK)
	if err != nil {
		s.Logger.Printf("ERROR retrieval failed: %v", err)
		chunks = nil
	}

	answer, err := s.Generator.Generate(ctx, llm.BuildPrompt(chunks, query))
	if err != nil {
		return "", nil, fmt.Errorf("generate answer: %w", err)
	}

	sources := make([]models.Source, 0, len(chunks))
	for i, c := range chunks {
		sources = append(sources, models.Source{
			ID:      i + 1,
			Title:   c.Title,
			URL:     c.URL,
			ChunkID: c.ChunkID,
		})
	}
	return answer, sources, nil
}
