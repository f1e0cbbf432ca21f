package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blog_trans_bot/internal/domain"
	"blog_trans_bot/internal/freshness"
)

type DiscoveryService struct {
	sources   []Source
	filter    *freshness.Filter
	publisher Publisher
	states    SourceStateStore
	dryRun    bool
	now       func() time.Time
	logger    *slog.Logger
}

func NewDiscoveryService(
	sources []Source,
	filter *freshness.Filter,
	publisher Publisher,
	states SourceStateStore,
	dryRun bool,
	logger *slog.Logger,
) *DiscoveryService {
	return &DiscoveryService{
		sources:   sources,
		filter:    filter,
		publisher: publisher,
		states:    states,
		dryRun:    dryRun,
		now:       time.Now,
		logger:    logger.With("component", "discovery"),
	}
}

// Sync runs one discovery pass over every source. Per-post failures are
// counted in the returned stats; an error is returned only when no source
// could be read at all.
func (s *DiscoveryService) Sync(ctx context.Context) (*domain.DispatchStats, error) {
	startTime := time.Now()
	now := s.now()
	stats := &domain.DispatchStats{}

	s.logger.Info("starting sync",
		"sources", len(s.sources),
		"cutoff", s.filter.Cutoff(now),
		"dry_run", s.dryRun,
	)

	var fetchErrs []error
	for _, src := range s.sources {
		if err := s.syncSource(ctx, src, now, stats); err != nil {
			fetchErrs = append(fetchErrs, err)
		}
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("sync completed",
		"total", stats.Total,
		"new", stats.New,
		"published", stats.Published,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	if len(s.sources) > 0 && len(fetchErrs) == len(s.sources) {
		return stats, errors.Join(fetchErrs...)
	}
	return stats, nil
}

func (s *DiscoveryService) syncSource(ctx context.Context, src Source, now time.Time, stats *domain.DispatchStats) error {
	logger := s.logger.With("source", src.ID())

	posts, err := src.FetchPosts(ctx)
	if err != nil {
		stats.Errors++
		logger.Error("failed to fetch index", "source_name", src.Name(), "error", err)
		return fmt.Errorf("fetch posts from %s: %w", src.ID(), err)
	}

	logger.Info("fetched posts from index", "count", len(posts))

	res := s.filter.Apply(ctx, now, posts)
	stats.Total += res.Total
	stats.Errors += len(res.Failures)
	for _, f := range res.Failures {
		logger.Error("existence check failed", "id", f.Post.ID, "key", f.Key, "error", f.Err)
	}

	logger.Debug("filtered posts",
		"new", len(res.New),
		"stale", res.Stale,
		"existing", res.Existing,
	)

	published := 0
	for _, post := range res.New {
		stats.New++

		if s.dryRun {
			logger.Info("dry run, skipping publish",
				"subject", post.Category,
				"id", post.ID,
				"link", post.Link,
				"pub_date", post.PubDate,
			)
			continue
		}

		if err := s.publisher.Publish(ctx, post.Category, post); err != nil {
			stats.Errors++
			logger.Error("failed to publish post", "id", post.ID, "error", err)
			continue
		}
		stats.Published++
		published++
	}

	if !s.dryRun {
		s.updateState(ctx, src.ID(), now, res.New, published, logger)
	}
	return nil
}

func (s *DiscoveryService) updateState(ctx context.Context, sourceID string, now time.Time, posts []domain.PostMetadata, published int, logger *slog.Logger) {
	state, err := s.states.Get(ctx, sourceID)
	if err != nil {
		logger.Warn("failed to load source state", "error", err)
		return
	}

	state.SourceID = sourceID
	state.LastSyncedAt = now
	if published > 0 {
		state.LastPostID = posts[0].ID
	}
	state.TotalPublished += int64(published)

	if err := s.states.Update(ctx, state); err != nil {
		logger.Warn("failed to update source state", "error", err)
	}
}
