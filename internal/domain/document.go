package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrBodyTooLarge marks an article whose body exceeds the translation
	// request limit. Messages failing with it are not retried.
	ErrBodyTooLarge = errors.New("article body exceeds translation limit")
	ErrNoRecipients = errors.New("no email recipients configured")
)

// Article is the parsed content of a blog post page.
type Article struct {
	Title       string
	Body        string
	Section     string
	Tags        []string
	PublishedAt time.Time
}

// Sentences returns the non-empty lines of the body in order.
func (a *Article) Sentences() []string {
	var out []string
	for _, line := range strings.Split(a.Body, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// TranslatedDocument is the result of processing one post.
type TranslatedDocument struct {
	DocID      string    `db:"doc_id"`
	Link       string    `db:"link"`
	Lang       string    `db:"lang"`
	PubDate    time.Time `db:"pub_date"`
	Section    string    `db:"section"`
	Title      string    `db:"title"`
	TitleTrans string    `db:"title_trans"`
	BodyTrans  []string  `db:"-"`
	Tags       []string  `db:"-"`
}

// Email is a rendered notification ready to send.
type Email struct {
	From     string
	To       []string
	Subject  string
	HTMLBody string
}
