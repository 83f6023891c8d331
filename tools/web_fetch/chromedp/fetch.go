package chromedp

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"leadscout/tools/web_fetch/models"
)

// Fetch renders pages in headless Chrome. A single value is shared
// process-wide; each call runs in its own browser context.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int
}

// Fetch navigates to pageURL and returns its title and visible text, text
// truncated to MaxChars.
func (f *Fetch) Fetch(ctx context.Context, pageURL string) (models.Page, error) {
	if strings.TrimSpace(pageURL) == "" {
		return models.Page{}, errors.New("invalid url")
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	t0 := time.Now()

	html, err := f.HTML(ctx, pageURL)
	if err != nil {
		return models.Page{}, err
	}

	title, text := extractText(html, pageURL)
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	return models.Page{
		URL:      pageURL,
		Title:    title,
		Text:     strings.TrimSpace(text),
		Status:   200,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

// HTML returns the rendered outer HTML of pageURL. Also used by the SERP
// discovery path, which parses the document itself.
func (f *Fetch) HTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("leadscout/1.0 (+https://leadscout.dev)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

// extractText prefers readability's article text and falls back to the raw
// document text when extraction finds nothing.
func extractText(html, pageURL string) (title, text string) {
	if article, err := readability.FromReader(strings.NewReader(html), mustParseURL(pageURL)); err == nil {
		title = strings.TrimSpace(article.Title)
		text = strings.TrimSpace(article.TextContent)
	}
	if text != "" {
		return title, text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return title, text
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return title, strings.TrimSpace(doc.Find("body").Text())
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
