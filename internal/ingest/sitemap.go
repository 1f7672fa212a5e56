package ingest

import (
	"context"
	"encoding/xml"
	"log"
	"time"
)

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// SitemapDiscoverer walks a sitemap index (or a plain urlset) and collects
// page URLs up to a limit. Child sitemap fetches are paced to stay polite.
type SitemapDiscoverer struct {
	Fetcher *Fetcher
	Pace    time.Duration
	Logger  *log.Logger
}

func NewSitemapDiscoverer(fetcher *Fetcher, logger *log.Logger) *SitemapDiscoverer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SITEMAP] ", log.LstdFlags)
	}
	return &SitemapDiscoverer{Fetcher: fetcher, Pace: 150 * time.Millisecond, Logger: logger}
}

// Discover fetches indexURL and returns up to limit page URLs. A fetch
// failure of the index itself yields an empty slice; the caller treats zero
// URLs as fatal for the run.
func (d *SitemapDiscoverer) Discover(ctx context.Context, indexURL string, limit int) []string {
	d.Logger.Printf("fetching sitemap: %s", indexURL)
	var urls []string

	body, err := d.Fetcher.Get(ctx, indexURL)
	if err != nil {
		return urls
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, sm := range index.Sitemaps {
			if len(urls) >= limit {
				break
			}
			child, err := d.Fetcher.Get(ctx, sm.Loc)
			if err != nil {
				continue
			}
			var set urlSet
			if err := xml.Unmarshal(child, &set); err != nil {
				d.Logger.Printf("ERROR failed to parse sitemap XML: %v", err)
				continue
			}
			for _, u := range set.URLs {
				if len(urls) >= limit {
					break
				}
				urls = append(urls, u.Loc)
			}
			select {
			case <-ctx.Done():
				return urls
			case <-time.After(d.Pace):
			}
		}
		d.Logger.Printf("found %d URLs", len(urls))
		return urls
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		d.Logger.Printf("ERROR failed to parse sitemap XML: %v", err)
		return urls
	}
	for _, u := range set.URLs {
		if len(urls) >= limit {
			break
		}
		urls = append(urls, u.Loc)
	}
	d.Logger.Printf("found %d URLs", len(urls))
	return urls
}
