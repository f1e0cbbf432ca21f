package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"blog_trans_bot/internal/domain"
)

type Source interface {
	ID() string
	Name() string
	FetchPosts(ctx context.Context) ([]domain.PostMetadata, error)
}

type ExistenceOracle interface {
	Lookup(ctx context.Context, key string) domain.Existence
}

type Publisher interface {
	Publish(ctx context.Context, subject string, post domain.PostMetadata) error
	Close() error
}

type SourceStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SourceState, error)
	Update(ctx context.Context, state *domain.SourceState) error
}

type ArticleFetcher interface {
	Fetch(ctx context.Context, link string) (*domain.Article, error)
}

type Translator interface {
	Translate(ctx context.Context, texts []string, dest string) ([]string, error)
}

type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

type DocumentStore interface {
	Insert(ctx context.Context, artifactKey string, doc *domain.TranslatedDocument) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Notifier interface {
	Send(ctx context.Context, email domain.Email) error
}
