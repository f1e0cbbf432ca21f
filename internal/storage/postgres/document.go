package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"blog_trans_bot/internal/domain"
)

type DocumentStore struct {
	db *sqlx.DB
}

func NewDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Insert records doc under artifactKey. Documents are written once; a
// redelivered message leaves the first row in place.
func (s *DocumentStore) Insert(ctx context.Context, artifactKey string, doc *domain.TranslatedDocument) error {
	query := `
		INSERT INTO documents (
			doc_id, link, lang, pub_date, section, title, title_trans,
			body_trans, tags, artifact_key
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (doc_id, lang) DO NOTHING`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		doc.DocID,
		doc.Link,
		doc.Lang,
		doc.PubDate,
		doc.Section,
		doc.Title,
		doc.TitleTrans,
		pq.StringArray(orEmpty(doc.BodyTrans)),
		pq.StringArray(orEmpty(doc.Tags)),
		artifactKey,
	)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.DocID, err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, docID, lang string) (*domain.TranslatedDocument, error) {
	query := `
		SELECT doc_id, link, lang, pub_date, section, title, title_trans, body_trans, tags
		FROM documents
		WHERE doc_id = $1 AND lang = $2`

	var doc domain.TranslatedDocument
	var body, tags pq.StringArray
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query, docID, lang).Scan(
		&doc.DocID, &doc.Link, &doc.Lang, &doc.PubDate, &doc.Section,
		&doc.Title, &doc.TitleTrans, &body, &tags,
	)
	if err != nil {
		return nil, err
	}
	doc.BodyTrans = body
	doc.Tags = tags
	return &doc, nil
}

// orEmpty keeps NOT NULL array columns satisfied; pq encodes nil as NULL.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
