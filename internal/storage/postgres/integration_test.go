//go:build integration

package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"blog_trans_bot/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_artifacts.up.sql"),
			filepath.Join(migrationsPath, "002_create_documents.up.sql"),
			filepath.Join(migrationsPath, "003_create_source_state.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM documents")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM artifacts")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM source_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestArtifactStore_LookupMissing() {
	store := NewArtifactStore(s.db, "test-bucket")

	got := store.Lookup(s.ctx, "posts/20201007-6da2a3be3378d3f1.html")
	s.Equal(domain.NotFound, got.State)
	s.NoError(got.Err)
}

func (s *PostgresIntegrationSuite) TestArtifactStore_PutThenLookup() {
	store := NewArtifactStore(s.db, "test-bucket")
	key := "posts/20201007-6da2a3be3378d3f1.html"

	s.Require().NoError(store.Put(s.ctx, key, "text/html", []byte("<p>one</p>")))
	s.Equal(domain.Found, store.Lookup(s.ctx, key).State)

	s.Require().NoError(store.Put(s.ctx, key, "text/html", []byte("<p>two</p>")))
	body, err := store.Get(s.ctx, key)
	s.NoError(err)
	s.Equal("<p>two</p>", string(body))
}

func (s *PostgresIntegrationSuite) TestArtifactStore_BucketsAreIsolated() {
	a := NewArtifactStore(s.db, "bucket-a")
	b := NewArtifactStore(s.db, "bucket-b")

	s.Require().NoError(a.Put(s.ctx, "posts/x.html", "text/html", []byte("x")))

	s.Equal(domain.Found, a.Lookup(s.ctx, "posts/x.html").State)
	s.Equal(domain.NotFound, b.Lookup(s.ctx, "posts/x.html").State)
}

func (s *PostgresIntegrationSuite) TestArtifactStore_LookupFailsOnClosedPool() {
	db, err := sqlx.Open("postgres", "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable connect_timeout=1")
	s.Require().NoError(err)
	defer db.Close()

	got := NewArtifactStore(db, "test-bucket").Lookup(s.ctx, "posts/x.html")
	s.Equal(domain.QueryFailed, got.State)
	s.Error(got.Err)
}

func (s *PostgresIntegrationSuite) TestDocumentStore_InsertOnce() {
	store := NewDocumentStore(s.db)
	pubDate := time.Date(2020, 10, 7, 21, 50, 59, 0, time.UTC)

	doc := &domain.TranslatedDocument{
		DocID:      "6da2a3be3378d3f1",
		Link:       "https://aws.amazon.com/blogs/aws/new-redis-6-compatibility-for-amazon-elasticache/",
		Lang:       "ko",
		PubDate:    pubDate,
		Section:    "Amazon ElastiCache",
		Title:      "New – Redis 6 Compatibility",
		TitleTrans: "신규",
		BodyTrans:  []string{"하나", "둘"},
		Tags:       []string{"Launch"},
	}
	s.Require().NoError(store.Insert(s.ctx, "posts/20201007-6da2a3be3378d3f1.html", doc))

	second := *doc
	second.TitleTrans = "changed"
	s.Require().NoError(store.Insert(s.ctx, "posts/20201007-6da2a3be3378d3f1.html", &second))

	got, err := store.Get(s.ctx, doc.DocID, "ko")
	s.Require().NoError(err)
	s.Equal("신규", got.TitleTrans)
	s.Equal([]string{"하나", "둘"}, got.BodyTrans)
	s.Equal([]string{"Launch"}, got.Tags)
	s.True(pubDate.Equal(got.PubDate))
}

func (s *PostgresIntegrationSuite) TestDocumentStore_NilTags() {
	store := NewDocumentStore(s.db)

	doc := &domain.TranslatedDocument{
		DocID:   "1803e43cd42a319c",
		Link:    "https://aws.amazon.com/blogs/aws/a/",
		Lang:    "ko",
		PubDate: time.Now().UTC().Truncate(time.Microsecond),
		Title:   "A",
	}
	s.NoError(store.Insert(s.ctx, "posts/a.html", doc))
}

func (s *PostgresIntegrationSuite) TestSourceStateStore_GetNew() {
	store := NewSourceStateStore(s.db)

	state, err := store.Get(s.ctx, "aws")
	s.NoError(err)
	s.Equal("aws", state.SourceID)
	s.True(state.LastSyncedAt.IsZero())
	s.Equal(int64(0), state.TotalPublished)
}

func (s *PostgresIntegrationSuite) TestSourceStateStore_UpdateAndGet() {
	store := NewSourceStateStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	state := &domain.SourceState{
		SourceID:       "aws",
		LastSyncedAt:   now,
		LastPostID:     "6da2a3be3378d3f1",
		TotalPublished: 3,
	}
	s.Require().NoError(store.Update(s.ctx, state))

	state.TotalPublished = 5
	s.Require().NoError(store.Update(s.ctx, state))

	got, err := store.Get(s.ctx, "aws")
	s.NoError(err)
	s.Equal("6da2a3be3378d3f1", got.LastPostID)
	s.Equal(int64(5), got.TotalPublished)
	s.WithinDuration(now, got.LastSyncedAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	artifacts := NewArtifactStore(s.db, "test-bucket")
	documents := NewDocumentStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := artifacts.Put(ctx, "posts/tx.html", "text/html", []byte("tx")); err != nil {
			return err
		}
		return documents.Insert(ctx, "posts/tx.html", &domain.TranslatedDocument{
			DocID: "tx", Link: "https://example.com/tx", Lang: "ko",
			PubDate: time.Now().UTC(), Title: "tx",
		})
	})
	s.NoError(err)

	s.Equal(domain.Found, artifacts.Lookup(s.ctx, "posts/tx.html").State)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	artifacts := NewArtifactStore(s.db, "test-bucket")
	errBoom := errors.New("boom")

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := artifacts.Put(ctx, "posts/rollback.html", "text/html", []byte("x")); err != nil {
			return err
		}
		return errBoom
	})
	s.ErrorIs(err, errBoom)

	s.Equal(domain.NotFound, artifacts.Lookup(s.ctx, "posts/rollback.html").State)
}
