package domain

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// postIDLength is the number of hex characters kept from the link digest.
const postIDLength = 16

// PostMetadata is a post discovered on a blog index page.
type PostMetadata struct {
	ID       string    `json:"id"`
	Link     string    `json:"link"`
	PubDate  time.Time `json:"pub_date"`
	Category string    `json:"category"`
}

// NewPostMetadata derives the post identity from its canonical link.
func NewPostMetadata(link string, pubDate time.Time, category string) PostMetadata {
	return PostMetadata{
		ID:       PostID(link),
		Link:     link,
		PubDate:  pubDate,
		Category: category,
	}
}

// PostID returns the first 16 hex characters of the MD5 digest of link.
func PostID(link string) string {
	sum := md5.Sum([]byte(link))
	return hex.EncodeToString(sum[:])[:postIDLength]
}

// KeySpace builds deterministic artifact keys under a common prefix.
type KeySpace struct {
	Prefix string
	Ext    string
}

// Key returns {prefix}/{YYYYMMDD}-{id}{ext}. The date is taken in the
// post's own offset.
func (k KeySpace) Key(post PostMetadata) string {
	name := post.PubDate.Format("20060102") + "-" + post.ID + k.Ext
	if k.Prefix == "" {
		return name
	}
	return k.Prefix + "/" + name
}
