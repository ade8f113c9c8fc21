package knowledge

import (
	"context"
	"fmt"
	"sort"
)

// FilterSpec narrows retrieval. All fields are optional and AND-combined,
// except Tags and Branches which OR-match within themselves. Branch and
// Branches are mutually exclusive; Branches exists to search the stable
// branch plus one working branch together. Active entries only, always.
type FilterSpec struct {
	Namespace  string
	Category   string
	TicketType string
	Tags       []string
	Author     string
	Branch     string
	Branches   []string
	MinScore   *float64
}

// Validate rejects malformed filters. Surfaced to the caller immediately.
func (f *FilterSpec) Validate() error {
	if f.Branch != "" && len(f.Branches) > 0 {
		return fmt.Errorf("filter cannot set both branch and branches")
	}
	return nil
}

// Matches is the canonical predicate shared by the indexed and scan paths.
// Keeping one evaluator is what guarantees both paths filter identically.
func (f *FilterSpec) Matches(e *KnowledgeEntry) bool {
	if !e.Active {
		return false
	}
	if f.Namespace != "" && e.Namespace != f.Namespace {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.TicketType != "" && e.OriginTicketType != f.TicketType {
		return false
	}
	if f.Author != "" && e.Author != f.Author {
		return false
	}
	if len(f.Tags) > 0 && !e.HasTag(f.Tags) {
		return false
	}
	if f.Branch != "" && e.Branch != f.Branch {
		return false
	}
	if len(f.Branches) > 0 {
		found := false
		for _, b := range f.Branches {
			if e.Branch == b {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SearchResult pairs an entry with its similarity score (1 - cosine distance).
type SearchResult struct {
	Entry *KnowledgeEntry `json:"entry"`
	Score float64         `json:"score"`
}

// SearchText embeds the query and searches. Embedding failure is fatal to
// the call; it has no fallback.
func (s *Store) SearchText(ctx context.Context, query string, filter FilterSpec, limit int) ([]SearchResult, error) {
	queryEmbedding, err := s.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.Search(ctx, queryEmbedding, filter, limit)
}

// Search returns a ranked, deduplicated, filter-consistent list of active
// entries for the query embedding. The vec index is tried first; any index
// error transitions once to a full scan and never retries the index mid-call.
// Both paths share ordering semantics: cosine distance ascending, id
// ascending on ties.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, filter FilterSpec, limit int) ([]SearchResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	var results []SearchResult
	if s.vecIdx != nil && s.vecIdx.available {
		indexed, err := s.searchIndexed(ctx, queryEmbedding, filter, limit)
		if err == nil {
			results = indexed
		} else {
			scanned, err := s.searchScan(ctx, queryEmbedding, filter, limit)
			if err != nil {
				return nil, err
			}
			results = scanned
		}
	} else {
		scanned, err := s.searchScan(ctx, queryEmbedding, filter, limit)
		if err != nil {
			return nil, err
		}
		results = scanned
	}

	// Usage tracking is a side effect; its outcome never folds into the
	// primary result.
	if len(results) > 0 {
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.Entry.ID
		}
		go s.TrackUsage(context.Background(), ids)
	}

	return results, nil
}

// searchIndexed over-fetches 2x limit nearest neighbors from the vec index
// (the index has no filter awareness) and filters the candidates in Go.
func (s *Store) searchIndexed(ctx context.Context, queryEmbedding []float32, filter FilterSpec, limit int) ([]SearchResult, error) {
	candidates, err := s.vecIdx.Search(queryEmbedding, 2*limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.EntryID
	}
	byID, err := s.fetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, c := range candidates {
		e, ok := byID[c.EntryID]
		if !ok || !filter.Matches(e) {
			continue
		}
		results = append(results, SearchResult{Entry: e, Score: 1.0 - c.Distance})
	}

	return finishSearch(results, filter, limit), nil
}

// searchScan is the full-scan fallback: cosine distance against every active
// row matching the non-vector filters. Must rank identically to the indexed
// path for the same inputs.
func (s *Store) searchScan(ctx context.Context, queryEmbedding []float32, filter FilterSpec, limit int) ([]SearchResult, error) {
	sqlQuery := `SELECT ` + entryColumns + ` FROM knowledge_entries WHERE active = 1`
	args := []interface{}{}
	if filter.Namespace != "" {
		sqlQuery += ` AND namespace = ?`
		args = append(args, filter.Namespace)
	}
	if filter.Category != "" {
		sqlQuery += ` AND category = ?`
		args = append(args, filter.Category)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*KnowledgeEntry
	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := s.attachCitations(ctx, entries); err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, e := range entries {
		if !e.Searchable() {
			continue // predates embedding support
		}
		if !filter.Matches(e) {
			continue
		}
		results = append(results, SearchResult{Entry: e, Score: cosineSimilarity(queryEmbedding, e.Embedding)})
	}

	return finishSearch(results, filter, limit), nil
}

// finishSearch applies the shared ordering, truncation, and minScore rules:
// distance ascending (score descending), id ascending on ties, truncate to
// limit, then drop results below minScore (boundary inclusive).
func finishSearch(results []SearchResult, filter FilterSpec, limit int) []SearchResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.ID < results[j].Entry.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}

	if filter.MinScore != nil {
		kept := results[:0]
		for _, r := range results {
			if r.Score >= *filter.MinScore {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	return results
}
