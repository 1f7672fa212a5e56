package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the newsrag system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains server-wide settings
type GeneralConfig struct {
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
}

// IngestConfig tunes the crawl/chunk/embed pipeline
type IngestConfig struct {
	SitemapIndex   string        `mapstructure:"sitemap_index"`
	UserAgent      string        `mapstructure:"user_agent"`
	NumArticles    int           `mapstructure:"num_articles"`
	ChunkSize      int           `mapstructure:"chunk_size"`
	ChunkOverlap   int           `mapstructure:"chunk_overlap"`
	EmbedBatchSize int           `mapstructure:"embed_batch_size"`
	VectorSize     int           `mapstructure:"vector_size"`
	FetchRetries   int           `mapstructure:"fetch_retries"`
	FetchDelay     time.Duration `mapstructure:"fetch_delay"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	Rendered       bool          `mapstructure:"rendered"`
	RenderTimeout  time.Duration `mapstructure:"render_timeout"`
	Selectors      []string      `mapstructure:"selectors"`
}

func (c IngestConfig) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than ingest.chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.VectorSize <= 0 {
		return errors.New("ingest.vector_size must be > 0")
	}
	if c.EmbedBatchSize <= 0 {
		return errors.New("ingest.embed_batch_size must be > 0")
	}
	return nil
}

// ProvidersConfig groups the hosted API clients
type ProvidersConfig struct {
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
}

// EmbeddingConfig targets a Jina-style /v1/embeddings endpoint
type EmbeddingConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	Model      string        `mapstructure:"model"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (c EmbeddingConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("providers.embedding.api_key is required")
	}
	return nil
}

// GeminiConfig configures the answer-generation model
type GeminiConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (c GeminiConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("providers.gemini.api_key is required")
	}
	return nil
}

// StorageConfig groups the external stores
type StorageConfig struct {
	Redis  RedisConfig  `mapstructure:"redis"`
	Qdrant QdrantConfig `mapstructure:"qdrant"`
}

// RedisConfig holds the session store connection settings
type RedisConfig struct {
	Host       string        `mapstructure:"host"`
	Port       string        `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

func (c RedisConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" || strings.TrimSpace(c.Port) == "" {
		return errors.New("storage.redis.host/port are required")
	}
	return nil
}

// QdrantConfig holds the vector index connection settings
type QdrantConfig struct {
	URL             string        `mapstructure:"url"`
	APIKey          string        `mapstructure:"api_key"`
	Collection      string        `mapstructure:"collection"`
	Timeout         time.Duration `mapstructure:"timeout"`
	UpsertBatchSize int           `mapstructure:"upsert_batch_size"`
}

func (c QdrantConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("storage.qdrant.url is required")
	}
	if strings.TrimSpace(c.Collection) == "" {
		return errors.New("storage.qdrant.collection is required")
	}
	return nil
}

// DefaultSelectors is the ordered article-body selector chain tried before
// the readability/paragraph fallbacks. Publisher-specific entries are plain
// configuration; override via ingest.selectors.
var DefaultSelectors = []string{
	"article",
	"div.ArticleBody__content",
	"div.StandardArticleBody_body",
	"div.article-body",
	"div.story-content",
	"div[itemprop='articleBody']",
	"main",
}

// LoadConfig loads config from file (or discovery paths when path is empty),
// applies NEWSRAG_* env overrides and validates tuning values. Credential
// validation is left to the command that needs the credential.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":5000")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("ingest.user_agent", "Mozilla/5.0 (compatible; RAG-Ingest/1.0; +https://example.com)")
	viper.SetDefault("ingest.num_articles", 50)
	viper.SetDefault("ingest.chunk_size", 800)
	viper.SetDefault("ingest.chunk_overlap", 100)
	viper.SetDefault("ingest.embed_batch_size", 16)
	viper.SetDefault("ingest.vector_size", 768)
	viper.SetDefault("ingest.fetch_retries", 3)
	viper.SetDefault("ingest.fetch_delay", "2s")
	viper.SetDefault("ingest.fetch_timeout", "20s")
	viper.SetDefault("ingest.render_timeout", "30s")
	viper.SetDefault("ingest.selectors", DefaultSelectors)
	viper.SetDefault("providers.embedding.endpoint", "https://api.jina.ai/v1/embeddings")
	viper.SetDefault("providers.embedding.model", "jina-embeddings-v2-base-en")
	viper.SetDefault("providers.embedding.max_retries", 3)
	viper.SetDefault("providers.embedding.timeout", "45s")
	viper.SetDefault("providers.gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("providers.gemini.model", "gemini-2.0-flash")
	viper.SetDefault("providers.gemini.timeout", "30s")
	viper.SetDefault("storage.redis.host", "localhost")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.timeout", "5s")
	viper.SetDefault("storage.redis.session_ttl", "48h")
	viper.SetDefault("storage.qdrant.collection", "news_articles")
	viper.SetDefault("storage.qdrant.timeout", "10s")
	viper.SetDefault("storage.qdrant.upsert_batch_size", 128)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("NEWSRAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
		// no config file is fine: defaults + env carry the whole surface
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Ingest.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}

	return &config
}
