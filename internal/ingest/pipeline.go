package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mhrezaei/newsrag/config"
	"github.com/mhrezaei/newsrag/internal/embedding"
	"github.com/mhrezaei/newsrag/internal/telemetry"
	"github.com/mhrezaei/newsrag/internal/vector"
	"github.com/mhrezaei/newsrag/models"
)

const (
	// maxEmbedChars caps the text sent to the embedding API per chunk.
	maxEmbedChars = 4000
	// maxTitleChars caps the title stored in point payloads.
	maxTitleChars = 200
)

// styleNoiseRE removes the TextSmall/TextMedium/TextLarge CSS class junk some
// publishers leak into rendered text.
var styleNoiseRE = regexp.MustCompile(`(?i)Text(Small|Medium|Large)`)

// Pipeline sequences one ingestion run: discover URLs, fetch, extract,
// chunk, embed, collect valid points, upsert. Everything is processed one
// item at a time with explicit pacing; a bad article or batch is logged and
// skipped, never aborting the run.
type Pipeline struct {
	Cfg        config.IngestConfig
	Fetcher    *Fetcher
	Discoverer *SitemapDiscoverer
	Extractor  *Extractor
	Renderer   HTMLRenderer // optional; when set, article pages are browser-rendered
	Embedder   embedding.Provider
	Index      vector.Index
	Upserter   *Upserter
	IDs        *IDGen
	Logger     *log.Logger

	ArticlePace time.Duration
	EmbedPace   time.Duration
}

// RunOptions selects the article source for one run.
type RunOptions struct {
	Limit    int    // article cap; 0 uses the configured default
	FromFile string // when set, ingest a local JSON array instead of crawling
}

// Summary aggregates the per-item outcomes of a run.
type Summary struct {
	Articles int            // unique articles that entered chunking
	Chunks   int            // chunks produced
	Points   int            // points with valid vectors
	Upserted int            // points acknowledged by the index
	Skipped  map[string]int // drop counts by stage
}

func (s Summary) String() string {
	return fmt.Sprintf("articles=%d chunks=%d points=%d upserted=%d skipped=%v",
		s.Articles, s.Chunks, s.Points, s.Upserted, s.Skipped)
}

// NewPipeline wires a production pipeline from config. The embedder and
// index come in as interfaces so tests can run the whole driver on fakes.
func NewPipeline(cfg config.IngestConfig, embedder embedding.Provider, index vector.Index, upsertBatch int, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	fetcher := NewFetcher(cfg.UserAgent, cfg.FetchRetries, cfg.FetchDelay, cfg.FetchTimeout, logger)
	p := &Pipeline{
		Cfg:         cfg,
		Fetcher:     fetcher,
		Discoverer:  NewSitemapDiscoverer(fetcher, logger),
		Extractor:   NewExtractor(cfg.Selectors),
		Embedder:    embedder,
		Index:       index,
		Upserter:    NewUpserter(index, upsertBatch, logger),
		IDs:         NewIDGen(),
		Logger:      logger,
		ArticlePace: 200 * time.Millisecond,
		EmbedPace:   150 * time.Millisecond,
	}
	if cfg.Rendered {
		p.Renderer = NewChromedpRenderer(cfg.UserAgent, cfg.RenderTimeout)
	}
	return p
}

// Run executes one ingestion pass. Failure to discover any URL or to load
// the input file is fatal; zero usable articles or points ends the run early
// with a warning and a nil error.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	summary := Summary{Skipped: map[string]int{}}
	p.Logger.Printf("starting news ingestion")

	if err := p.Index.EnsureCollection(ctx); err != nil {
		return summary, fmt.Errorf("ensure collection: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = p.Cfg.NumArticles
	}

	var articles []models.Article
	if opts.FromFile != "" {
		loaded, err := LoadArticlesFromFile(opts.FromFile)
		if err != nil {
			return summary, err
		}
		p.Logger.Printf("loaded %d articles from file", len(loaded))
		articles = loaded
	} else {
		urls := p.Discoverer.Discover(ctx, p.Cfg.SitemapIndex, limit)
		if len(urls) == 0 {
			return summary, errors.New("no URLs discovered from sitemap")
		}
		articles = p.crawl(ctx, urls, &summary)
	}

	if len(articles) == 0 {
		p.Logger.Printf("WARN no valid articles to ingest")
		return summary, nil
	}

	points := p.collectPoints(ctx, articles, &summary)
	if len(points) == 0 {
		p.Logger.Printf("WARN no embeddings generated, skipping upsert")
		return summary, nil
	}

	p.Logger.Printf("prepared %d points, starting upsert", len(points))
	summary.Upserted = p.Upserter.UpsertAll(ctx, points)
	p.Logger.Printf("ingestion complete: %s", summary)
	return summary, nil
}

// crawl turns URLs into articles, one at a time with pacing. Fetch or
// extraction failures skip the URL.
func (p *Pipeline) crawl(ctx context.Context, urls []string, summary *Summary) []models.Article {
	var articles []models.Article
	for i, url := range urls {
		p.Logger.Printf("[%d/%d] fetching: %s", i+1, len(urls), url)

		html, err := p.fetchPage(ctx, url)
		if err != nil {
			summary.Skipped["fetch"]++
			telemetry.ItemsSkipped.WithLabelValues("fetch").Inc()
			continue
		}

		text := p.Extractor.Extract(html, url)
		if len(text) < minArticleLen {
			summary.Skipped["short"]++
			telemetry.ItemsSkipped.WithLabelValues("short").Inc()
			continue
		}

		articles = append(articles, models.Article{
			ID:      urlToID(url),
			Title:   titleFromText(text),
			URL:     url,
			Content: text,
		})

		select {
		case <-ctx.Done():
			return articles
		case <-time.After(p.ArticlePace):
		}
	}
	return articles
}

func (p *Pipeline) fetchPage(ctx context.Context, url string) (string, error) {
	if p.Renderer != nil {
		return p.Renderer.Render(ctx, url)
	}
	body, err := p.Fetcher.Get(ctx, url)
	return string(body), err
}

// collectPoints dedupes articles, chunks them and embeds chunk batches,
// keeping only vectors of the configured dimensionality.
func (p *Pipeline) collectPoints(ctx context.Context, articles []models.Article, summary *Summary) []vector.Point {
	deduped := DedupeArticles(articles)
	p.Logger.Printf("%d unique articles to index", len(deduped))
	summary.Articles = len(deduped)
	telemetry.ArticlesIngested.Add(float64(len(deduped)))

	var points []vector.Point
	for _, article := range deduped {
		chunks := ChunkText(article.Content, p.Cfg.ChunkSize, p.Cfg.ChunkOverlap)
		p.Logger.Printf("%s -> %d chunks", articleLabel(article), len(chunks))
		summary.Chunks += len(chunks)

		for start := 0; start < len(chunks); start += p.Cfg.EmbedBatchSize {
			end := start + p.Cfg.EmbedBatchSize
			if end > len(chunks) {
				end = len(chunks)
			}
			batch := chunks[start:end]

			for _, r := range p.embedBatch(ctx, article, batch) {
				if r.skip != "" {
					summary.Skipped[r.skip]++
					telemetry.ItemsSkipped.WithLabelValues(r.skip).Inc()
					continue
				}
				points = append(points, r.point)
				telemetry.ChunksEmbedded.Inc()
			}

			select {
			case <-ctx.Done():
				summary.Points = len(points)
				return points
			case <-time.After(p.EmbedPace):
			}
		}
	}
	summary.Points = len(points)
	return points
}

// pointResult is the per-chunk outcome of one embedding batch: either a
// point ready for upsert or the stage that dropped it.
type pointResult struct {
	point vector.Point
	skip  string
}

// embedBatch embeds one batch of chunks. A hard embedding failure drops the
// whole batch and the run continues; a vector of the wrong dimensionality
// drops just its chunk.
func (p *Pipeline) embedBatch(ctx context.Context, article models.Article, batch []models.Chunk) []pointResult {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = cleanForEmbedding(c.Text, maxEmbedChars)
	}

	vecs, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		p.Logger.Printf("ERROR embedding batch for article %s failed, skipping batch: %v", article.ID, err)
		results := make([]pointResult, len(batch))
		for i := range results {
			results[i] = pointResult{skip: "embed"}
		}
		return results
	}

	results := make([]pointResult, 0, len(batch))
	for i := range batch {
		vec := vecs[i]
		if len(vec) != p.Cfg.VectorSize {
			p.Logger.Printf("WARN skipping invalid vector for article %s (len=%d)", article.ID, len(vec))
			results = append(results, pointResult{skip: "dimension"})
			continue
		}
		results = append(results, pointResult{point: vector.Point{
			ID:     p.IDs.Next(),
			Vector: vec,
			Payload: map[string]any{
				"article_id": article.ID,
				"title":      payloadTitle(article.Title),
				"url":        article.URL,
				"chunk_id":   batch[i].ID,
				"text":       texts[i],
			},
		}})
	}
	return results
}

// DedupeArticles keeps the first article per URL (falling back to id). Two
// articles with the same URL contribute exactly one set of chunks.
func DedupeArticles(articles []models.Article) []models.Article {
	seen := make(map[string]bool, len(articles))
	var out []models.Article
	for _, a := range articles {
		key := a.URL
		if key == "" {
			key = a.ID
		}
		if key == "" {
			key = uuid.NewString()
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func urlToID(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// titleFromText takes the first sentence, capped at 140 characters.
func titleFromText(text string) string {
	title := text
	if i := strings.Index(text, "."); i >= 0 {
		title = text[:i]
	}
	if len(title) > 140 {
		title = title[:140]
	}
	return title
}

// payloadTitle trims byline tails ("... By Someone") and caps the length.
func payloadTitle(title string) string {
	if i := strings.Index(title, "By"); i >= 0 {
		title = title[:i]
	}
	title = CleanText(title)
	if len(title) > maxTitleChars {
		title = title[:maxTitleChars]
	}
	return title
}

// cleanForEmbedding normalizes chunk text before it is sent remote.
func cleanForEmbedding(text string, maxLen int) string {
	cleaned := CleanText(styleNoiseRE.ReplaceAllString(text, ""))
	if len(cleaned) > maxLen {
		cleaned = cleaned[:maxLen]
	}
	return cleaned
}

func articleLabel(a models.Article) string {
	if a.Title != "" {
		return a.Title
	}
	return a.URL
}
