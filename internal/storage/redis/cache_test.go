package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"blog_trans_bot/internal/domain"
)

type countingOracle struct {
	results map[string]domain.Existence
	calls   int
}

func (o *countingOracle) Lookup(_ context.Context, key string) domain.Existence {
	o.calls++
	if r, ok := o.results[key]; ok {
		return r
	}
	return domain.Missing()
}

type CachedOracleSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	primary *countingOracle
	cache   *CachedOracle
	ctx     context.Context
}

func (s *CachedOracleSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.primary = &countingOracle{results: map[string]domain.Existence{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.cache = NewCachedOracle(s.client, s.primary, time.Hour, logger)
	s.ctx = context.Background()
}

func (s *CachedOracleSuite) TearDownTest() {
	s.client.Close()
}

func TestCachedOracleSuite(t *testing.T) {
	suite.Run(t, new(CachedOracleSuite))
}

func (s *CachedOracleSuite) TestFoundIsCached() {
	s.primary.results["posts/a.html"] = domain.Exists()

	s.Equal(domain.Found, s.cache.Lookup(s.ctx, "posts/a.html").State)
	s.Equal(domain.Found, s.cache.Lookup(s.ctx, "posts/a.html").State)

	s.Equal(1, s.primary.calls)
	s.True(s.mr.Exists("artifact:posts/a.html"))
	s.Equal(time.Hour, s.mr.TTL("artifact:posts/a.html"))
}

func (s *CachedOracleSuite) TestMissingIsNotCached() {
	s.Equal(domain.NotFound, s.cache.Lookup(s.ctx, "posts/b.html").State)
	s.Equal(domain.NotFound, s.cache.Lookup(s.ctx, "posts/b.html").State)

	s.Equal(2, s.primary.calls)
	s.False(s.mr.Exists("artifact:posts/b.html"))
}

func (s *CachedOracleSuite) TestFailureIsNotCached() {
	s.primary.results["posts/c.html"] = domain.LookupFailed(errors.New("db down"))

	got := s.cache.Lookup(s.ctx, "posts/c.html")
	s.Equal(domain.QueryFailed, got.State)
	s.False(s.mr.Exists("artifact:posts/c.html"))
}

func (s *CachedOracleSuite) TestExpiredEntryFallsThrough() {
	s.cache.MarkStored(s.ctx, "posts/d.html")
	s.mr.FastForward(2 * time.Hour)

	s.Equal(domain.NotFound, s.cache.Lookup(s.ctx, "posts/d.html").State)
	s.Equal(1, s.primary.calls)
}

func (s *CachedOracleSuite) TestCacheOutageFallsThrough() {
	s.primary.results["posts/e.html"] = domain.Exists()
	s.mr.Close()

	s.Equal(domain.Found, s.cache.Lookup(s.ctx, "posts/e.html").State)
	s.Equal(1, s.primary.calls)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrEmptyAddress)

	mr := miniredis.RunT(t)
	client, err := NewClient(Config{Address: mr.Addr()})
	require.NoError(t, err)
	client.Close()
}
