package domain

import "time"

// SourceState is the discovery bookkeeping kept per index page.
type SourceState struct {
	ID             int64     `db:"id"`
	SourceID       string    `db:"source_id"`
	LastSyncedAt   time.Time `db:"last_synced_at"`
	LastPostID     string    `db:"last_post_id"`
	TotalPublished int64     `db:"total_published"`
}
