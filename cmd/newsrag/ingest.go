package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/mhrezaei/newsrag/config"
	"github.com/mhrezaei/newsrag/internal/embedding"
	"github.com/mhrezaei/newsrag/internal/ingest"
	"github.com/mhrezaei/newsrag/internal/vector"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var limit int
	var fromFile string
	var cmd = &cobra.Command{
		Use:   "ingest",
		Short: "Crawl news articles and index them for retrieval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if err := cfg.Providers.Embedding.Validate(); err != nil {
				return err
			}
			if err := cfg.Storage.Qdrant.Validate(); err != nil {
				return err
			}

			embedder := embedding.NewClient(
				cfg.Providers.Embedding.Endpoint,
				cfg.Providers.Embedding.APIKey,
				cfg.Providers.Embedding.Model,
				cfg.Providers.Embedding.MaxRetries,
				cfg.Providers.Embedding.Timeout,
				nil,
			)
			index := vector.NewQdrantIndex(
				cfg.Storage.Qdrant.URL,
				cfg.Storage.Qdrant.APIKey,
				cfg.Storage.Qdrant.Collection,
				cfg.Ingest.VectorSize,
				cfg.Storage.Qdrant.Timeout,
			)

			pipeline := ingest.NewPipeline(cfg.Ingest, embedder, index, cfg.Storage.Qdrant.UpsertBatchSize, nil)
			summary, err := pipeline.Run(cmd.Context(), ingest.RunOptions{Limit: limit, FromFile: fromFile})
			if err != nil {
				return err
			}
			log.Printf("ingestion finished: %s", summary)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max articles to crawl (defaults to ingest.num_articles)")
	cmd.Flags().StringVar(&fromFile, "file", "", "ingest a local JSON array of articles instead of crawling")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
