package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"blog_trans_bot/internal/domain"
)

// ArtifactStore keeps rendered documents addressed by bucket and key.
type ArtifactStore struct {
	db     *sqlx.DB
	bucket string
}

func NewArtifactStore(db *sqlx.DB, bucket string) *ArtifactStore {
	return &ArtifactStore{db: db, bucket: bucket}
}

// Lookup reports whether key is stored. Only sql.ErrNoRows maps to NotFound.
func (s *ArtifactStore) Lookup(ctx context.Context, key string) domain.Existence {
	var one int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &one,
		"SELECT 1 FROM artifacts WHERE bucket = $1 AND key = $2",
		s.bucket, key,
	)
	switch {
	case err == nil:
		return domain.Exists()
	case errors.Is(err, sql.ErrNoRows):
		return domain.Missing()
	default:
		return domain.LookupFailed(fmt.Errorf("lookup artifact %s: %w", key, err))
	}
}

// Put stores body under key. Writing the same key again replaces the body.
func (s *ArtifactStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	query := `
		INSERT INTO artifacts (bucket, key, content_type, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bucket, key) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body`

	if _, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, s.bucket, key, contentType, body); err != nil {
		return fmt.Errorf("put artifact %s: %w", key, err)
	}
	return nil
}

// Get returns the stored body for key.
func (s *ArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &body,
		"SELECT body FROM artifacts WHERE bucket = $1 AND key = $2",
		s.bucket, key,
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}
