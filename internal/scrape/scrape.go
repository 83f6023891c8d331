// Package scrape implements the deep-scrape path: discover result URLs for a
// query by rendering a search page, canonicalize and dedupe them across
// queries, then fetch page text with bounded concurrency. Everything here is
// best-effort; a failed query or page is logged and skipped, never fatal.
package scrape

import (
	"context"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"leadscout/tools/web_fetch/models"
)

const (
	// DefaultSearchURL is the SERP endpoint the query is appended to.
	DefaultSearchURL = "https://www.bing.com/search?q="

	// resultSelector matches organic result anchors, with a generic
	// absolute-href fallback for layout variants.
	resultSelector = "li.b_algo h2 a, a[href^='http']"

	defaultMaxInFlight = 4
)

// PageFetcher retrieves the rendered text of one URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (models.Page, error)
}

// HTMLRenderer returns the rendered HTML of one URL.
type HTMLRenderer interface {
	HTML(ctx context.Context, url string) (string, error)
}

// Browser discovers and fetches pages through a headless browser. One
// instance is shared process-wide.
type Browser struct {
	Renderer    HTMLRenderer
	Fetcher     PageFetcher
	SearchURL   string // defaults to DefaultSearchURL
	EngineHost  string // self-links containing this fragment are skipped
	MaxInFlight int
	Log         *log.Logger
}

// DiscoverURLs renders the search page for query and extracts up to maxLinks
// unique canonical result URLs, skipping links back into the search engine.
func (b *Browser) DiscoverURLs(ctx context.Context, query string, maxLinks int) ([]string, error) {
	base := b.SearchURL
	if base == "" {
		base = DefaultSearchURL
	}
	html, err := b.Renderer.HTML(ctx, base+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	engine := b.EngineHost
	if engine == "" {
		engine = "bing.com"
	}

	var urls []string
	seen := make(map[string]struct{})
	doc.Find(resultSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") {
			return true
		}
		clean := CanonicalURL(href)
		if strings.Contains(clean, engine) {
			return true
		}
		if _, dup := seen[clean]; dup {
			return true
		}
		seen[clean] = struct{}{}
		urls = append(urls, clean)
		return maxLinks <= 0 || len(urls) < maxLinks
	})
	return urls, nil
}

// FetchPage retrieves one page's rendered text.
func (b *Browser) FetchPage(ctx context.Context, pageURL string) (models.Page, error) {
	return b.Fetcher.Fetch(ctx, pageURL)
}

// Collect runs URL discovery for every query, dedupes across queries keeping
// first-seen order, then fetches the unique URLs concurrently. Failures are
// isolated per query and per page; the result holds whatever succeeded, in
// discovery order.
func (b *Browser) Collect(ctx context.Context, queries []string, perQuery int) []models.Page {
	var all []string
	for _, q := range queries {
		urls, err := b.DiscoverURLs(ctx, q, perQuery)
		if err != nil {
			b.logf("url discovery failed for %q: %v", q, err)
			continue
		}
		b.logf("found %d urls for %q", len(urls), q)
		all = append(all, urls...)
	}

	unique := DedupeURLs(all)
	if len(unique) == 0 {
		return nil
	}
	b.logf("fetching %d unique urls", len(unique))

	pages := make([]models.Page, len(unique))
	fetched := make([]bool, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	limit := b.MaxInFlight
	if limit <= 0 {
		limit = defaultMaxInFlight
	}
	g.SetLimit(limit)
	for i, u := range unique {
		g.Go(func() error {
			page, err := b.Fetcher.Fetch(gctx, u)
			if err != nil {
				b.logf("fetch failed for %s: %v", u, err)
				return nil
			}
			pages[i] = page
			fetched[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.Page, 0, len(unique))
	for i, ok := range fetched {
		if ok {
			out = append(out, pages[i])
		}
	}
	return out
}

func (b *Browser) logf(format string, args ...interface{}) {
	if b.Log != nil {
		b.Log.Printf(format, args...)
	}
}
