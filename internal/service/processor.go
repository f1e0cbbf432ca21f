package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"blog_trans_bot/internal/domain"
	"blog_trans_bot/internal/render"
	"blog_trans_bot/internal/retry"
	"blog_trans_bot/internal/translate"
)

type ProcessorConfig struct {
	DryRun      bool
	TargetLang  string
	MaxBodySize int
	ChunkSize   int
	From        string
	To          []string
}

type ProcessorService struct {
	fetcher    ArticleFetcher
	translator Translator
	artifacts  ArtifactStore
	documents  DocumentStore
	txManager  TransactionManager
	notifier   Notifier
	policy     retry.Policy
	keys       domain.KeySpace
	cfg        ProcessorConfig
	logger     *slog.Logger

	mu    sync.Mutex
	stats domain.ProcessStats
}

func NewProcessorService(
	fetcher ArticleFetcher,
	translator Translator,
	artifacts ArtifactStore,
	documents DocumentStore,
	txManager TransactionManager,
	notifier Notifier,
	policy retry.Policy,
	keys domain.KeySpace,
	cfg ProcessorConfig,
	logger *slog.Logger,
) *ProcessorService {
	return &ProcessorService{
		fetcher:    fetcher,
		translator: translator,
		artifacts:  artifacts,
		documents:  documents,
		txManager:  txManager,
		notifier:   notifier,
		policy:     policy,
		keys:       keys,
		cfg:        cfg,
		logger:     logger.With("component", "processor"),
	}
}

// Process translates one discovered post, stores the rendered document under
// the post's artifact key and emails it. Errors wrapping
// domain.ErrBodyTooLarge are final for the post.
func (p *ProcessorService) Process(ctx context.Context, post domain.PostMetadata) error {
	logger := p.logger.With("id", post.ID, "link", post.Link)
	p.count(func(s *domain.ProcessStats) { s.Received++ })

	err := p.process(ctx, post, logger)
	switch {
	case err == nil:
		p.count(func(s *domain.ProcessStats) { s.Processed++ })
	case errors.Is(err, domain.ErrBodyTooLarge):
		p.count(func(s *domain.ProcessStats) { s.Rejected++ })
		logger.Error("post rejected", "error", err)
	default:
		p.count(func(s *domain.ProcessStats) { s.Failed++ })
		logger.Error("post processing failed", "error", err)
	}

	stats := p.Stats()
	logger.Info("message handled",
		"received", stats.Received,
		"processed", stats.Processed,
		"rejected", stats.Rejected,
		"failed", stats.Failed,
	)
	return err
}

func (p *ProcessorService) process(ctx context.Context, post domain.PostMetadata, logger *slog.Logger) error {
	article, err := p.fetcher.Fetch(ctx, post.Link)
	if err != nil {
		return fmt.Errorf("fetch article: %w", err)
	}

	if n := utf8.RuneCountInString(article.Body); n >= p.cfg.MaxBodySize {
		return fmt.Errorf("%w: %d characters, limit %d", domain.ErrBodyTooLarge, n, p.cfg.MaxBodySize)
	}

	doc, err := p.translateArticle(ctx, post, article)
	if err != nil {
		return err
	}

	html, err := render.Document(doc)
	if err != nil {
		return err
	}

	key := p.keys.Key(post)

	if p.cfg.DryRun {
		logger.Info("dry run, skipping store and email", "key", key, "title", doc.Title, "size", len(html))
		return nil
	}

	err = p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.artifacts.Put(txCtx, key, render.ContentType, html); err != nil {
			return err
		}
		return p.documents.Insert(txCtx, key, doc)
	})
	if err != nil {
		return fmt.Errorf("store document: %w", err)
	}

	logger.Info("document stored", "key", key)

	email := domain.Email{
		From:     p.cfg.From,
		To:       p.cfg.To,
		Subject:  render.Subject(doc),
		HTMLBody: string(html),
	}
	if err := p.notifier.Send(ctx, email); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	return nil
}

func (p *ProcessorService) translateArticle(ctx context.Context, post domain.PostMetadata, article *domain.Article) (*domain.TranslatedDocument, error) {
	title, err := p.translate(ctx, []string{article.Title})
	if err != nil {
		return nil, fmt.Errorf("translate title: %w", err)
	}
	if len(title) != 1 {
		return nil, fmt.Errorf("translate title: got %d results", len(title))
	}

	batches, err := translate.Chunk(article.Sentences(), p.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	var body []string
	for _, batch := range batches {
		out, err := p.translate(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("translate body: %w", err)
		}
		body = append(body, out...)
	}

	section := article.Section
	if section == "" {
		section = post.Category
	}

	return &domain.TranslatedDocument{
		DocID:      post.ID,
		Link:       post.Link,
		Lang:       p.cfg.TargetLang,
		PubDate:    post.PubDate,
		Section:    section,
		Title:      article.Title,
		TitleTrans: title[0],
		BodyTrans:  body,
		Tags:       article.Tags,
	}, nil
}

func (p *ProcessorService) translate(ctx context.Context, texts []string) ([]string, error) {
	var out []string
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		res, err := p.translator.Translate(ctx, texts, p.cfg.TargetLang)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// Stats returns a snapshot of the counters since start.
func (p *ProcessorService) Stats() domain.ProcessStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *ProcessorService) count(fn func(*domain.ProcessStats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}
