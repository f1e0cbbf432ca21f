package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"blog_trans_bot/internal/domain"
	"blog_trans_bot/internal/retry"
	"blog_trans_bot/internal/service/mocks"
)

type ProcessorServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	fetcher    *mocks.MockArticleFetcher
	translator *mocks.MockTranslator
	artifacts  *mocks.MockArtifactStore
	documents  *mocks.MockDocumentStore
	txManager  *mocks.MockTransactionManager
	notifier   *mocks.MockNotifier

	cfg    ProcessorConfig
	policy retry.Policy
	logger *slog.Logger
	post   domain.PostMetadata
}

func (s *ProcessorServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.fetcher = mocks.NewMockArticleFetcher(s.ctrl)
	s.translator = mocks.NewMockTranslator(s.ctrl)
	s.artifacts = mocks.NewMockArtifactStore(s.ctrl)
	s.documents = mocks.NewMockDocumentStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)

	s.cfg = ProcessorConfig{
		TargetLang:  "ko",
		MaxBodySize: 100,
		ChunkSize:   25,
		From:        "bot@example.com",
		To:          []string{"team@example.com"},
	}
	s.policy = retry.Policy{
		MaxAttempts: 3,
		Backoff:     func(int) time.Duration { return time.Millisecond },
		IsRetryable: retry.IsTransient,
	}
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.post = domain.NewPostMetadata(
		"https://aws.amazon.com/blogs/aws/new-redis-6-compatibility-for-amazon-elasticache/",
		time.Date(2020, 10, 7, 14, 50, 59, 0, time.FixedZone("PDT", -7*3600)),
		"aws",
	)
}

func (s *ProcessorServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestProcessorServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ProcessorServiceTestSuite))
}

func (s *ProcessorServiceTestSuite) newService() *ProcessorService {
	return NewProcessorService(
		s.fetcher,
		s.translator,
		s.artifacts,
		s.documents,
		s.txManager,
		s.notifier,
		s.policy,
		keys,
		s.cfg,
		s.logger,
	)
}

func (s *ProcessorServiceTestSuite) article() *domain.Article {
	return &domain.Article{
		Title:   "Redis 6",
		Body:    "first line\nsecond line\n\nthird line",
		Section: "Amazon ElastiCache",
		Tags:    []string{"Launch"},
	}
}

func (s *ProcessorServiceTestSuite) expectTransaction() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func (s *ProcessorServiceTestSuite) TestProcess_TranslatesStoresAndNotifies() {
	ctx := context.Background()
	key := "posts/20201007-6da2a3be3378d3f1.html"

	s.fetcher.EXPECT().Fetch(ctx, s.post.Link).Return(s.article(), nil)
	gomock.InOrder(
		s.translator.EXPECT().Translate(gomock.Any(), []string{"Redis 6"}, "ko").Return([]string{"레디스 6"}, nil),
		s.translator.EXPECT().Translate(gomock.Any(), []string{"first line", "second line"}, "ko").Return([]string{"첫째", "둘째"}, nil),
		s.translator.EXPECT().Translate(gomock.Any(), []string{"third line"}, "ko").Return([]string{"셋째"}, nil),
	)
	s.expectTransaction()
	s.artifacts.EXPECT().Put(gomock.Any(), key, "text/html; charset=utf-8", gomock.Any()).Return(nil)
	s.documents.EXPECT().Insert(gomock.Any(), key, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, doc *domain.TranslatedDocument) error {
			s.Equal(s.post.ID, doc.DocID)
			s.Equal("ko", doc.Lang)
			s.Equal("레디스 6", doc.TitleTrans)
			s.Equal([]string{"첫째", "둘째", "셋째"}, doc.BodyTrans)
			s.Equal("Amazon ElastiCache", doc.Section)
			s.Equal([]string{"Launch"}, doc.Tags)
			return nil
		},
	)
	s.notifier.EXPECT().Send(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, email domain.Email) error {
			s.Equal("[translated] Redis 6", email.Subject)
			s.Equal([]string{"team@example.com"}, email.To)
			s.True(strings.Contains(email.HTMLBody, "첫째<br/>둘째<br/>셋째"))
			return nil
		},
	)

	svc := s.newService()
	s.NoError(svc.Process(ctx, s.post))
	s.Equal(domain.ProcessStats{Received: 1, Processed: 1}, svc.Stats())
}

func (s *ProcessorServiceTestSuite) TestProcess_RejectsOversizedBody() {
	ctx := context.Background()
	article := s.article()
	article.Body = strings.Repeat("x", s.cfg.MaxBodySize)

	s.fetcher.EXPECT().Fetch(ctx, s.post.Link).Return(article, nil)

	svc := s.newService()
	err := svc.Process(ctx, s.post)

	s.ErrorIs(err, domain.ErrBodyTooLarge)
	s.Equal(domain.ProcessStats{Received: 1, Rejected: 1}, svc.Stats())
}

func (s *ProcessorServiceTestSuite) TestProcess_RejectsUnsplittableSentence() {
	ctx := context.Background()
	article := s.article()
	article.Body = strings.Repeat("y", s.cfg.ChunkSize+1)

	s.fetcher.EXPECT().Fetch(ctx, s.post.Link).Return(article, nil)
	s.translator.EXPECT().Translate(gomock.Any(), []string{"Redis 6"}, "ko").Return([]string{"레디스 6"}, nil)

	err := s.newService().Process(ctx, s.post)

	s.ErrorIs(err, domain.ErrBodyTooLarge)
}

func (s *ProcessorServiceTestSuite) TestProcess_RetriesTransientTranslateErrors() {
	ctx := context.Background()
	article := s.article()
	article.Body = "only line"

	s.fetcher.EXPECT().Fetch(ctx, s.post.Link).Return(article, nil)
	gomock.InOrder(
		s.translator.EXPECT().Translate(gomock.Any(), []string{"Redis 6"}, "ko").Return(nil, &retry.StatusError{Code: 429}),
		s.translator.EXPECT().Translate(gomock.Any(), []string{"Redis 6"}, "ko").Return(nil, &retry.StatusError{Code: 503}),
		s.translator.EXPECT().Translate(gomock.Any(), []string{"Redis 6"}, "ko").Return([]string{"레디스 6"}, nil),
		s.translator.EXPECT().Translate(gomock.Any(), []string{"only line"}, "ko").Return([]string{"한 줄"}, nil),
	)
	s.expectTransaction()
	s.artifacts.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.documents.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.notifier.EXPECT().Send(ctx, gomock.Any()).Return(nil)

	s.NoError(s.newService().Process(ctx, s.post))
}

func (s *ProcessorServiceTestSuite) TestProcess_PermanentTranslateErrorFailsFast() {
	ctx := context.Background()

	s.fetcher.EXPECT().Fetch(ctx, s.post.Link).Return(s.article(), nil)
	s.translator.EXPECT().Translate(gomock.Any(), []string{"Redis 6"}, "ko").Return(nil, &retry.StatusError{Code: 400})

	svc := s.newService()
	err := svc.Process(ctx, s.post)

	var statusErr *retry.StatusError
	s.ErrorAs(err, &statusErr)
	s.Equal(domain.ProcessStats{Received: 1, Failed: 1}, svc.Stats())
}

func (s *ProcessorServiceTestSuite) TestProcess_FetchError() {
	ctx := context.Background()

	s.fetcher.EXPECT().Fetch(ctx, s.post.Link).Return(nil, errors.New("connection refused"))

	err := s.newService().Process(ctx, s.post)

	s.Error(err)
	s.Contains(err.Error(), "fetch article")
}

func (s *ProcessorServiceTestSuite) TestProcess_StoreErrorSkipsEmail() {
	ctx := context.Background()
	article := s.article()
	article.Body = "only line"

	s.fetcher.EXPECT().Fetch(ctx, s.post.Link).Return(article, nil)
	s.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), "ko").DoAndReturn(
		func(_ context.Context, texts []string, _ string) ([]string, error) {
			return texts, nil
		},
	).Times(2)
	s.expectTransaction()
	s.artifacts.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	err := s.newService().Process(ctx, s.post)

	s.Error(err)
	s.Contains(err.Error(), "store document")
}

func (s *ProcessorServiceTestSuite) TestProcess_DryRunSkipsStoreAndEmail() {
	ctx := context.Background()
	s.cfg.DryRun = true

	s.fetcher.EXPECT().Fetch(ctx, s.post.Link).Return(s.article(), nil)
	s.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), "ko").DoAndReturn(
		func(_ context.Context, texts []string, _ string) ([]string, error) {
			return texts, nil
		},
	).Times(3)

	svc := s.newService()
	s.NoError(svc.Process(ctx, s.post))
	s.Equal(1, svc.Stats().Processed)
}

func (s *ProcessorServiceTestSuite) TestProcess_SectionFallsBackToCategory() {
	ctx := context.Background()
	article := s.article()
	article.Section = ""
	article.Body = ""

	s.fetcher.EXPECT().Fetch(ctx, s.post.Link).Return(article, nil)
	s.translator.EXPECT().Translate(gomock.Any(), []string{"Redis 6"}, "ko").Return([]string{"레디스 6"}, nil)
	s.expectTransaction()
	s.artifacts.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.documents.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, doc *domain.TranslatedDocument) error {
			s.Equal("aws", doc.Section)
			s.Empty(doc.BodyTrans)
			return nil
		},
	)
	s.notifier.EXPECT().Send(ctx, gomock.Any()).Return(errors.New("smtp timeout"))

	svc := s.newService()
	err := svc.Process(ctx, s.post)

	s.Error(err)
	s.Equal(1, svc.Stats().Failed)
}
