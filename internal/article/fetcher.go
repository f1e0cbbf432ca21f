// Package article downloads a blog post and extracts its readable text and
// Open Graph article metadata.
package article

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"blog_trans_bot/internal/domain"
	"blog_trans_bot/internal/retry"
)

// maxPageSize bounds how much of a post page is read.
const maxPageSize = 10 << 20

var errEmptyPage = errors.New("page is empty")

type Config struct {
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Policy
}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	retry      retry.Policy
	logger     *slog.Logger
}

func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		retry:      cfg.Retry,
		logger:     logger.With("component", "article"),
	}
	f.retry.OnRetry = func(attempt int, wait time.Duration, err error) {
		f.logger.Warn("article download failed, retrying",
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
	}
	return f
}

// Fetch downloads link and parses it into an Article.
func (f *Fetcher) Fetch(ctx context.Context, link string) (*domain.Article, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parse link: %w", err)
	}

	var page []byte
	err = f.retry.Do(ctx, func(ctx context.Context) error {
		var dlErr error
		page, dlErr = f.download(ctx, link)
		return dlErr
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", link, err)
	}

	a, err := Parse(page, pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", link, err)
	}

	f.logger.Debug("article parsed",
		"link", link,
		"title", a.Title,
		"body_length", len(a.Body),
		"tags", len(a.Tags),
	)
	return a, nil
}

func (f *Fetcher) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.StatusError{Code: resp.StatusCode}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
}

// Parse extracts the article text and metadata from a post page.
func Parse(page []byte, pageURL *url.URL) (*domain.Article, error) {
	if len(bytes.TrimSpace(page)) == 0 {
		return nil, errEmptyPage
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	extracted, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}

	a := &domain.Article{
		Title:   strings.TrimSpace(extracted.Title),
		Section: metaContent(doc, "article:section"),
		Tags:    metaContents(doc, "article:tag"),
	}
	if a.Title == "" {
		a.Title = metaContent(doc, "og:title")
	}

	if raw := metaContent(doc, "article:published_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			a.PublishedAt = t
		}
	}

	a.Body = bodyText(extracted.Content)
	if a.Body == "" {
		a.Body = normalizeLines(extracted.TextContent)
	}
	if a.Body == "" {
		return nil, errors.New("no content extracted")
	}

	return a, nil
}

// bodyText turns readability HTML into one line per block element.
func bodyText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li, pre, blockquote").Each(func(_ int, sel *goquery.Selection) {
		// nested blocks are emitted by their innermost element
		if sel.Find("p, li, pre").Length() > 0 {
			return
		}
		if text := collapseSpaces(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n")
}

func normalizeLines(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = collapseSpaces(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func metaContent(doc *goquery.Document, property string) string {
	values := metaContents(doc, property)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func metaContents(doc *goquery.Document, property string) []string {
	var values []string
	selector := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, property, property)
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if v := strings.TrimSpace(sel.AttrOr("content", "")); v != "" {
			values = append(values, v)
		}
	})
	return values
}
