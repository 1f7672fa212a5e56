package ingest

import (
	"context"
	"time"

	cdp "github.com/chromedp/chromedp"
)

// HTMLRenderer fetches a page the way a browser sees it. Used for publishers
// that assemble the article body client-side; the plain Fetcher handles
// everything else.
type HTMLRenderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromedpRenderer drives a headless browser per page. One allocator per
// call keeps the ingestion run self-contained; throughput is not a goal.
type ChromedpRenderer struct {
	UserAgent string
	Timeout   time.Duration
}

func NewChromedpRenderer(userAgent string, timeout time.Duration) *ChromedpRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromedpRenderer{UserAgent: userAgent, Timeout: timeout}
}

func (r *ChromedpRenderer) Render(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	opts := append(cdp.DefaultExecAllocatorOptions[:],
		cdp.Flag("headless", true),
		cdp.UserAgent(r.UserAgent),
	)
	actx, cancelAlloc := cdp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := cdp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := cdp.Run(bctx,
		cdp.Navigate(url),
		cdp.WaitReady("body", cdp.ByQuery),
		cdp.OuterHTML("html", &html, cdp.ByQuery),
	)
	return html, err
}
