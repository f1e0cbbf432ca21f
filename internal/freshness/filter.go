// Package freshness decides which discovered posts are new: recent enough to
// care about and without a stored artifact.
package freshness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog_trans_bot/internal/domain"
)

// DefaultWindow is the lookback used when none is configured.
const DefaultWindow = 3 * 24 * time.Hour

// Oracle reports whether an artifact key already exists in durable storage.
type Oracle interface {
	Lookup(ctx context.Context, key string) domain.Existence
}

// Failure is a candidate whose existence check could not be answered.
type Failure struct {
	Post domain.PostMetadata
	Key  string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("lookup %s: %v", f.Key, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one filter pass.
type Result struct {
	New      []domain.PostMetadata
	Total    int
	Stale    int
	Existing int
	Failures []Failure
}

// Err joins all lookup failures, or returns nil when there were none.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

type Filter struct {
	oracle Oracle
	window time.Duration
	keys   domain.KeySpace
}

func New(oracle Oracle, window time.Duration, keys domain.KeySpace) *Filter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Filter{oracle: oracle, window: window, keys: keys}
}

// Cutoff returns the earliest publish time still considered fresh at now.
func (f *Filter) Cutoff(now time.Time) time.Time {
	return CeilDay(now.Add(-f.window))
}

// Apply keeps candidates published at or after the cutoff whose artifact
// key is not stored yet. Input order is preserved.
func (f *Filter) Apply(ctx context.Context, now time.Time, candidates []domain.PostMetadata) Result {
	cutoff := f.Cutoff(now)
	res := Result{Total: len(candidates)}

	for _, post := range candidates {
		if post.PubDate.Before(cutoff) {
			res.Stale++
			continue
		}

		key := f.keys.Key(post)
		existence := f.oracle.Lookup(ctx, key)
		switch existence.State {
		case domain.NotFound:
			res.New = append(res.New, post)
		case domain.Found:
			res.Existing++
		default:
			err := existence.Err
			if err == nil {
				err = fmt.Errorf("unexpected lookup state %s", existence.State)
			}
			res.Failures = append(res.Failures, Failure{Post: post, Key: key, Err: err})
		}
	}

	return res
}

// CeilDay rounds t up to the next midnight in its location. A time already
// at midnight is returned unchanged.
func CeilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	floor := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	if floor.Equal(t) {
		return floor
	}
	return floor.AddDate(0, 0, 1)
}
