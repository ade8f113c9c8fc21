package knowledge

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	sqlite_vec.Auto()
}

// vecIndex wraps a vec0 virtual table for KNN retrieval. When the extension
// cannot be loaded every method degrades to a no-op and Search returns an
// error, which the caller treats as a signal to run the linear scan instead.
//
// vec0 rowids are integers while entry IDs are text, so entry_vec_ids keeps
// the mapping between the two.
type vecIndex struct {
	db         *sql.DB
	dimensions int
	available  bool
}

type vecResult struct {
	EntryID  string
	Distance float64
}

func newVecIndex(db *sql.DB, dimensions int) *vecIndex {
	vi := &vecIndex{db: db, dimensions: dimensions}
	if err := vi.ensureSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  sqlite-vec not available, using linear scan: %v\n", err)
		return vi
	}
	vi.available = true
	return vi
}

func (vi *vecIndex) ensureSchema() error {
	var vecVersion string
	if err := vi.db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		return fmt.Errorf("vec_version() failed: %w", err)
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS vec_metadata (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE IF NOT EXISTS entry_vec_ids (
			vec_id INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_id TEXT UNIQUE NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := vi.db.Exec(stmt); err != nil {
			return fmt.Errorf("vec schema setup failed: %w", err)
		}
	}

	if err := vi.resetOnDimensionChange(); err != nil {
		return err
	}

	_, err := vi.db.Exec(fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS entry_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		vi.dimensions,
	))
	if err != nil {
		return fmt.Errorf("failed to create vec0 table: %w", err)
	}

	_, err = vi.db.Exec(`INSERT OR REPLACE INTO vec_metadata (key, value) VALUES ('dimensions', ?)`,
		strconv.Itoa(vi.dimensions))
	if err != nil {
		return fmt.Errorf("failed to record vec dimensions: %w", err)
	}
	return nil
}

// resetOnDimensionChange drops the vec0 table and ID mapping when the
// embedder dimensions differ from what the index was built with, e.g. after
// switching STRATA_EMBEDDINGS from local to openai. Entries keep their
// stored embeddings, so Backfill repopulates the index afterwards.
func (vi *vecIndex) resetOnDimensionChange() error {
	var stored string
	switch err := vi.db.QueryRow(`SELECT value FROM vec_metadata WHERE key = 'dimensions'`).Scan(&stored); {
	case err == sql.ErrNoRows:
		return nil // fresh index
	case err != nil:
		return err
	case stored == strconv.Itoa(vi.dimensions):
		return nil
	}

	fmt.Fprintf(os.Stderr, "⚠️  Embedding dimensions changed (%s -> %d), rebuilding vec index\n", stored, vi.dimensions)
	if _, err := vi.db.Exec(`DROP TABLE IF EXISTS entry_embeddings`); err != nil {
		return fmt.Errorf("failed to drop stale vec0 table: %w", err)
	}
	if _, err := vi.db.Exec(`DELETE FROM entry_vec_ids`); err != nil {
		return fmt.Errorf("failed to clear vec ID mapping: %w", err)
	}
	return nil
}

// Insert adds or replaces an entry's embedding. Embeddings whose length
// doesn't match the index dimensions are silently skipped; they remain
// reachable through the linear scan.
func (vi *vecIndex) Insert(entryID string, embedding []float32) error {
	if !vi.available || len(embedding) != vi.dimensions {
		return nil
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("failed to serialize embedding: %w", err)
	}

	tx, err := vi.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR IGNORE INTO entry_vec_ids (entry_id) VALUES (?)`, entryID); err != nil {
		return fmt.Errorf("failed to map entry to vec ID: %w", err)
	}
	var vecID int64
	if err := tx.QueryRow(`SELECT vec_id FROM entry_vec_ids WHERE entry_id = ?`, entryID).Scan(&vecID); err != nil {
		return fmt.Errorf("failed to map entry to vec ID: %w", err)
	}

	// vec0 has no upsert, so replace is delete + insert
	if _, err := tx.Exec(`DELETE FROM entry_embeddings WHERE rowid = ?`, vecID); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO entry_embeddings (rowid, embedding) VALUES (?, ?)`, vecID, blob); err != nil {
		return fmt.Errorf("failed to insert into vec0: %w", err)
	}

	return tx.Commit()
}

// Search runs a KNN query against the vec0 table and resolves rowids to
// entry IDs in one pass, ordered by ascending cosine distance.
func (vi *vecIndex) Search(queryEmbedding []float32, limit int) ([]vecResult, error) {
	if !vi.available {
		return nil, fmt.Errorf("vec index not available")
	}

	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query: %w", err)
	}

	// The MATCH constraint must live in its own subquery for vec0 to plan
	// the KNN; the join then swaps rowids for entry IDs.
	rows, err := vi.db.Query(`
		SELECT m.entry_id, knn.distance
		FROM (
			SELECT rowid, distance
			FROM entry_embeddings
			WHERE embedding MATCH ?
			ORDER BY distance
			LIMIT ?
		) AS knn
		JOIN entry_vec_ids m ON m.vec_id = knn.rowid
		ORDER BY knn.distance
	`, blob, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []vecResult
	for rows.Next() {
		var r vecResult
		if err := rows.Scan(&r.EntryID, &r.Distance); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Delete removes an entry's embedding and its rowid mapping.
func (vi *vecIndex) Delete(entryID string) error {
	if !vi.available {
		return nil
	}

	var vecID int64
	switch err := vi.db.QueryRow(`SELECT vec_id FROM entry_vec_ids WHERE entry_id = ?`, entryID).Scan(&vecID); {
	case err == sql.ErrNoRows:
		return nil // never indexed
	case err != nil:
		return err
	}

	if _, err := vi.db.Exec(`DELETE FROM entry_embeddings WHERE rowid = ?`, vecID); err != nil {
		return err
	}
	_, err := vi.db.Exec(`DELETE FROM entry_vec_ids WHERE vec_id = ?`, vecID)
	return err
}

// Backfill indexes stored embeddings that have no vec0 row yet, which
// happens when the database predates the index or the index was rebuilt
// after a dimension change. Returns the number of entries indexed;
// undecodable or mismatched embeddings are counted and reported on stderr
// rather than aborting the rest.
func (vi *vecIndex) Backfill(db *sql.DB) (int, error) {
	if !vi.available {
		return 0, nil
	}

	rows, err := db.Query(`
		SELECT k.id, k.embedding
		FROM knowledge_entries k
		LEFT JOIN entry_vec_ids v ON v.entry_id = k.id
		WHERE v.vec_id IS NULL
		AND k.embedding IS NOT NULL AND k.embedding != '' AND k.embedding != '[]' AND k.embedding != 'null'
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type pending struct {
		id      string
		embJSON string
	}
	var toIndex []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.embJSON); err != nil {
			return 0, err
		}
		toIndex = append(toIndex, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	indexed, skipped := 0, 0
	for _, p := range toIndex {
		var embedding []float32
		if err := json.Unmarshal([]byte(p.embJSON), &embedding); err != nil {
			skipped++
			continue
		}
		if len(embedding) != vi.dimensions {
			skipped++
			continue
		}
		if err := vi.Insert(p.id, embedding); err != nil {
			skipped++
			continue
		}
		indexed++
	}

	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Skipped %d entries during vec index backfill\n", skipped)
	}
	return indexed, nil
}
