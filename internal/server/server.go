package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/mhrezaei/newsrag/config"
	"github.com/mhrezaei/newsrag/internal/embedding"
	"github.com/mhrezaei/newsrag/internal/llm"
	"github.com/mhrezaei/newsrag/internal/rag"
	"github.com/mhrezaei/newsrag/internal/session"
	redisstore "github.com/mhrezaei/newsrag/internal/session/redis"
	"github.com/mhrezaei/newsrag/internal/vector"
	"github.com/mhrezaei/newsrag/models"
)

// Answerer is what the handlers need from the RAG service.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, []models.Source, error)
}

// New assembles the echo instance with all routes registered. Dependencies
// come in pre-built so tests can run the full HTTP surface on fakes.
func New(sessions session.Store, answerer Answerer, logger *log.Logger) *echo.Echo {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	// Uniform error surface: log the real error, return a generic body.
	// Upstream API details never reach end users.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := "Internal server error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"success": false, "error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ch := &ChatHandler{Sessions: sessions, RAG: answerer, Logger: logger}
	ch.Register(e)

	return e
}

// Run wires the production dependency graph from config and serves until the
// listener fails. Missing credentials abort before the listener starts.
func Run(cfg *appconfig.Config, addr string) error {
	if err := cfg.Providers.Embedding.Validate(); err != nil {
		return err
	}
	if err := cfg.Providers.Gemini.Validate(); err != nil {
		return err
	}
	if err := cfg.Storage.Qdrant.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	rdb, err := redisstore.Conn(ctx, cfg.Storage.Redis.Host, cfg.Storage.Redis.Port,
		cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
	if err != nil {
		return err
	}
	sessions := redisstore.NewStore(rdb, cfg.Storage.Redis.SessionTTL)

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
	generator := llm.NewGeminiClient(
		cfg.Providers.Gemini.Endpoint,
		cfg.Providers.Gemini.APIKey,
		cfg.Providers.Gemini.Model,
		cfg.Providers.Gemini.Timeout,
	)

	svc := rag.NewService(embedder, index, generator, nil)
	e := New(sessions, svc, nil)

	if addr == "" {
		addr = cfg.General.Listen
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
