package knowledge

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// TrackUsage records that the given entries were returned by a query: one
// batch update incrementing usage_count and setting last_used_at together.
// Best-effort by contract — any failure is swallowed so tracking can never
// fail or block a retrieval or maintenance call. Counts may lag real usage
// on failure, never run ahead of it.
func (s *Store) TrackUsage(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now())
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_entries
		SET usage_count = usage_count + 1, last_used_at = ?
		WHERE id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Usage tracking failed: %v\n", err)
	}
}
