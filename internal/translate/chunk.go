package translate

import (
	"fmt"

	"blog_trans_bot/internal/domain"
)

// Chunk groups texts, in order, into batches whose combined length stays at
// or below limit. A single text longer than limit cannot be sent and is
// reported as domain.ErrBodyTooLarge.
func Chunk(texts []string, limit int) ([][]string, error) {
	var (
		chunks  [][]string
		current []string
		size    int
	)

	for i, text := range texts {
		if len(text) > limit {
			return nil, fmt.Errorf("text %d is %d bytes, limit %d: %w", i, len(text), limit, domain.ErrBodyTooLarge)
		}
		if size+len(text) > limit && len(current) > 0 {
			chunks = append(chunks, current)
			current, size = nil, 0
		}
		current = append(current, text)
		size += len(text)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	return chunks, nil
}
