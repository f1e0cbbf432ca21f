package blog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"blog_trans_bot/internal/domain"
	"blog_trans_bot/internal/retry"
)

const SourceName = "AWS Blog"

// Config holds settings for one blog index page.
type Config struct {
	Category  string
	URL       string
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Policy
}

// Source scrapes post metadata from a blog index page.
type Source struct {
	httpClient *http.Client
	category   string
	pageURL    string
	userAgent  string
	retry      retry.Policy
	logger     *slog.Logger
}

// New creates a new blog index source.
func New(cfg Config, logger *slog.Logger) *Source {
	s := &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		category:  cfg.Category,
		pageURL:   cfg.URL,
		userAgent: cfg.UserAgent,
		retry:     cfg.Retry,
		logger:    logger.With("source", cfg.Category),
	}
	s.retry.OnRetry = func(attempt int, wait time.Duration, err error) {
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
	}
	return s
}

// ID returns the source category.
func (s *Source) ID() string {
	return s.category
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchPosts downloads the index page and extracts every post on it.
func (s *Source) FetchPosts(ctx context.Context) ([]domain.PostMetadata, error) {
	var doc *goquery.Document
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.fetchDocument(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.pageURL, err)
	}

	posts := s.extract(doc)
	s.logger.Debug("fetched index page", "url", s.pageURL, "posts", len(posts))
	return posts, nil
}

func (s *Source) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (s *Source) extract(doc *goquery.Document) []domain.PostMetadata {
	base, _ := url.Parse(s.pageURL)
	seen := map[string]struct{}{}
	var posts []domain.PostMetadata

	doc.Find("footer.blog-post-meta").Each(func(_ int, footer *goquery.Selection) {
		link := permalink(footer, base)
		if link == "" {
			s.logger.Warn("post without permalink")
			return
		}

		raw, _ := footer.Find(`time[property="datePublished"]`).First().Attr("datetime")
		pubDate, err := parseDate(raw)
		if err != nil {
			s.logger.Warn("failed to parse date",
				"link", link,
				"date", raw,
			)
			return
		}

		post := domain.NewPostMetadata(link, pubDate, s.category)
		if _, ok := seen[post.ID]; ok {
			return
		}
		seen[post.ID] = struct{}{}
		posts = append(posts, post)
	})

	return posts
}

func permalink(footer *goquery.Selection, base *url.URL) string {
	anchors := footer.Find(`a[property="url"]`)
	a := anchors.FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return strings.TrimSpace(sel.Text()) == "Permalink"
	}).First()
	if a.Length() == 0 {
		a = anchors.First()
	}

	href, ok := a.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format %q", raw)
}
