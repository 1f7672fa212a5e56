package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Fetcher performs HTTP GETs with a fixed user-agent and a bounded number of
// retries. The delay between attempts is constant (this is the polite
// crawler, not the embedding client — no backoff growth). After exhausting
// retries the last error is returned and the caller decides whether the URL
// is skippable.
type Fetcher struct {
	UserAgent string
	Retries   int
	Delay     time.Duration
	Client    *http.Client
	Logger    *log.Logger
}

func NewFetcher(userAgent string, retries int, delay, timeout time.Duration, logger *log.Logger) *Fetcher {
	if retries <= 0 {
		retries = 3
	}
	if delay <= 0 {
		delay = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[FETCH] ", log.LstdFlags)
	}
	return &Fetcher{
		UserAgent: userAgent,
		Retries:   retries,
		Delay:     delay,
		Client:    &http.Client{Timeout: timeout},
		Logger:    logger,
	}
}

// Get fetches url, retrying up to f.Retries times with a fixed delay between
// attempts. Each failed attempt is logged as a warning.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for i := 0; i < f.Retries; i++ {
		body, err := f.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.Logger.Printf("WARN fetch failed (%d/%d) -> %s: %v", i+1, f.Retries, url, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	f.Logger.Printf("ERROR could not fetch %s after %d retries", url, f.Retries)
	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (f *Fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
