package knowledge

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides local knowledge storage using SQLite
type Store struct {
	db       *sql.DB
	dataDir  string
	embedder Embedder

	// Vector index for fast KNN retrieval (linear scan if sqlite-vec unavailable)
	vecIdx *vecIndex
}

// GetDB returns the underlying SQL database handle
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// NewStore creates a new knowledge store
func NewStore() (*Store, error) {
	return NewStoreWithEmbedder(GetEmbedder())
}

// NewStoreWithEmbedder creates a store with an injected embedder. Tests use
// this to substitute a deterministic stub.
func NewStoreWithEmbedder(embedder Embedder) (*Store, error) {
	// Determine data directory
	dataDir := os.Getenv("STRATA_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home dir: %w", err)
		}
		dataDir = filepath.Join(home, ".strata")
	}

	// Create directory
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	// Open database
	dbPath := filepath.Join(dataDir, "knowledge.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:       db,
		dataDir:  dataDir,
		embedder: embedder,
	}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	// Initialize sqlite-vec vector index for fast KNN retrieval
	store.vecIdx = newVecIndex(db, store.embedder.Dimensions())
	if store.vecIdx.available {
		if n, err := store.vecIdx.Backfill(db); err == nil && n > 0 {
			fmt.Fprintf(os.Stderr, "🔍 Backfilled %d entries into vec index\n", n)
		}
	}

	return store, nil
}

// initSchema creates the database tables
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT,
		embedding TEXT,
		category TEXT,
		tags TEXT,
		source TEXT,
		origin_ticket_id TEXT,
		origin_ticket_type TEXT,
		confidence REAL NOT NULL DEFAULT 0.7,
		active INTEGER NOT NULL DEFAULT 1,
		decision_scope TEXT,
		usage_count INTEGER NOT NULL DEFAULT 0,
		last_used_at DATETIME,
		author TEXT,
		branch TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_namespace ON knowledge_entries(namespace);
	CREATE INDEX IF NOT EXISTS idx_entries_active ON knowledge_entries(active);
	CREATE INDEX IF NOT EXISTS idx_entries_content_hash ON knowledge_entries(content_hash);
	CREATE INDEX IF NOT EXISTS idx_entries_created_at ON knowledge_entries(created_at DESC);

	CREATE TABLE IF NOT EXISTS entry_tags (
		entry_id TEXT,
		tag TEXT,
		FOREIGN KEY (entry_id) REFERENCES knowledge_entries(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entry_tags_tag ON entry_tags(tag);

	CREATE TABLE IF NOT EXISTS citations (
		entry_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		path TEXT NOT NULL,
		file_hash TEXT NOT NULL,
		PRIMARY KEY (entry_id, position),
		FOREIGN KEY (entry_id) REFERENCES knowledge_entries(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_citations_entry_id ON citations(entry_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const entryColumns = `id, namespace, title, content, embedding, category, tags, source,
	origin_ticket_id, origin_ticket_type, confidence, active, decision_scope,
	usage_count, last_used_at, author, branch, created_at, updated_at`

// contentHash calculates SHA256 hash of content for deduplication
func contentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// Create inserts a new knowledge entry, filling defaults and computing the
// embedding from title + content + tags. Duplicate content within the same
// namespace returns the existing entry.
func (s *Store) Create(ctx context.Context, e *KnowledgeEntry) (*KnowledgeEntry, error) {
	if strings.TrimSpace(e.Title) == "" {
		return nil, fmt.Errorf("entry title is required")
	}

	hash := contentHash(e.Content)

	// Duplicate check by content hash and namespace
	var existingID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM knowledge_entries WHERE content_hash = ? AND namespace = ?`,
		hash, e.Namespace).Scan(&existingID)
	if err == nil {
		return s.GetByID(ctx, existingID)
	}

	if e.ID == "" {
		e.ID = generateID()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	if e.Confidence == 0 {
		e.Confidence = DefaultConfidence
	}
	e.Confidence = clampConfidence(e.Confidence)
	if e.Source == "" {
		e.Source = SourceManual
	}
	if e.Branch == "" {
		e.Branch = DraftBranch
	}
	e.Active = true

	// Ensure embedding
	if len(e.Embedding) == 0 {
		embedding, err := s.embedder.Embed(e.EmbeddingText())
		if err != nil {
			return nil, fmt.Errorf("failed to embed entry: %w", err)
		}
		e.Embedding = embedding
	}

	tagsJSON, _ := json.Marshal(e.Tags)
	embeddingJSON, _ := json.Marshal(e.Embedding)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_entries (id, namespace, title, content, content_hash, embedding,
			category, tags, source, origin_ticket_id, origin_ticket_type, confidence, active,
			decision_scope, usage_count, last_used_at, author, branch, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, 0, NULL, ?, ?, ?, ?)
	`, e.ID, e.Namespace, e.Title, e.Content, hash, string(embeddingJSON),
		e.Category, string(tagsJSON), e.Source, e.OriginTicketID, e.OriginTicketType,
		e.Confidence, e.DecisionScope, e.Author, e.Branch, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}

	for _, tag := range e.Tags {
		s.db.ExecContext(ctx, `INSERT INTO entry_tags (entry_id, tag) VALUES (?, ?)`, e.ID, tag)
	}
	if err := s.replaceCitations(ctx, e.ID, e.Citations); err != nil {
		return nil, err
	}

	// Insert into vec index for fast KNN retrieval
	if s.vecIdx != nil {
		s.vecIdx.Insert(e.ID, e.Embedding)
	}

	return e, nil
}

// UpdateContent replaces the embedding source fields of an entry and
// recomputes its embedding.
func (s *Store) UpdateContent(ctx context.Context, id, title, content string, tags []string) error {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("entry not found: %s", id)
	}

	e.Title = title
	e.Content = content
	e.Tags = tags

	embedding, err := s.embedder.Embed(e.EmbeddingText())
	if err != nil {
		return fmt.Errorf("failed to embed entry: %w", err)
	}

	tagsJSON, _ := json.Marshal(tags)
	embeddingJSON, _ := json.Marshal(embedding)
	now := time.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE knowledge_entries
		SET title = ?, content = ?, content_hash = ?, tags = ?, embedding = ?, updated_at = ?
		WHERE id = ?
	`, title, content, contentHash(content), string(tagsJSON), string(embeddingJSON), now, id)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	s.db.ExecContext(ctx, `DELETE FROM entry_tags WHERE entry_id = ?`, id)
	for _, tag := range tags {
		s.db.ExecContext(ctx, `INSERT INTO entry_tags (entry_id, tag) VALUES (?, ?)`, id, tag)
	}

	if s.vecIdx != nil {
		s.vecIdx.Insert(id, embedding)
	}
	return nil
}

// ReplaceCitations overwrites an entry's citation list. This is the only
// path that rewrites recorded file hashes.
func (s *Store) ReplaceCitations(ctx context.Context, id string, citations []Citation) error {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("entry not found: %s", id)
	}
	if err := s.replaceCitations(ctx, id, citations); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE knowledge_entries SET updated_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *Store) replaceCitations(ctx context.Context, id string, citations []Citation) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM citations WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear citations: %w", err)
	}
	for i, c := range citations {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO citations (entry_id, position, path, file_hash) VALUES (?, ?, ?, ?)
		`, id, i, c.Path, c.FileHash)
		if err != nil {
			return fmt.Errorf("failed to insert citation: %w", err)
		}
	}
	return nil
}

// GetByID returns a single entry by ID, or nil if not found.
func (s *Store) GetByID(ctx context.Context, id string) (*KnowledgeEntry, error) {
	if id == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := s.scanEntry(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachCitations(ctx, []*KnowledgeEntry{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ActiveEntries returns all active entries, optionally restricted to a
// namespace, with citations attached. Used by maintenance and validation.
func (s *Store) ActiveEntries(ctx context.Context, namespace string) ([]*KnowledgeEntry, error) {
	sqlQuery := `SELECT ` + entryColumns + ` FROM knowledge_entries WHERE active = 1`
	args := []interface{}{}
	if namespace != "" {
		sqlQuery += ` AND namespace = ?`
		args = append(args, namespace)
	}
	sqlQuery += ` ORDER BY id`

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
	return entries, nil
}

// List returns recent entries, optionally filtered by namespace
func (s *Store) List(ctx context.Context, limit int, namespace string) ([]*KnowledgeEntry, error) {
	sqlQuery := `SELECT ` + entryColumns + ` FROM knowledge_entries WHERE active = 1`
	args := []interface{}{}
	if namespace != "" {
		sqlQuery += ` AND namespace = ?`
		args = append(args, namespace)
	}
	sqlQuery += ` ORDER BY created_at DESC`
	if limit > 0 {
		sqlQuery += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
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
	return entries, nil
}

// fetchByIDs batch-loads entries for the indexed retrieval path.
func (s *Store) fetchByIDs(ctx context.Context, ids []string) (map[string]*KnowledgeEntry, error) {
	if len(ids) == 0 {
		return map[string]*KnowledgeEntry{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*KnowledgeEntry, len(ids))
	var entries []*KnowledgeEntry
	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			continue
		}
		byID[e.ID] = e
		entries = append(entries, e)
	}
	if err := s.attachCitations(ctx, entries); err != nil {
		return nil, err
	}
	return byID, nil
}

// Deactivate marks an entry inactive. Entries are never deleted by the core;
// inactive entries are excluded from retrieval and maintenance.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_entries SET active = 0, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("entry not found: %s", id)
	}
	if s.vecIdx != nil {
		s.vecIdx.Delete(id)
	}
	return nil
}

// Promote moves an entry from its draft branch to the stable branch marker.
func (s *Store) Promote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_entries SET branch = ?, updated_at = ? WHERE id = ?`,
		StableBranch, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to promote entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("entry not found: %s", id)
	}
	return nil
}

// SetConfidence persists a recalculated confidence, clamped to bounds.
func (s *Store) SetConfidence(ctx context.Context, id string, confidence float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_entries SET confidence = ? WHERE id = ?`,
		clampConfidence(confidence), id)
	return err
}

// Count returns the total number of active entries
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_entries WHERE active = 1`).Scan(&count)
	return count, err
}

// Size returns the database file size as a human-readable string
func (s *Store) Size() (string, error) {
	dbPath := filepath.Join(s.dataDir, "knowledge.db")
	info, err := os.Stat(dbPath)
	if err != nil {
		return "unknown", err
	}

	size := info.Size()
	if size < 1024 {
		return fmt.Sprintf("%d B", size), nil
	} else if size < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(size)/1024), nil
	} else {
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024)), nil
	}
}

// LastActivity returns the timestamp of the most recent entry update
func (s *Store) LastActivity(ctx context.Context) (time.Time, error) {
	var lastActivityStr sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM knowledge_entries`).Scan(&lastActivityStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	if !lastActivityStr.Valid || lastActivityStr.String == "" {
		return time.Time{}, nil
	}
	// Parse SQLite datetime format
	lastActivity, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", lastActivityStr.String)
	if err != nil {
		lastActivity, err = time.Parse("2006-01-02T15:04:05Z", lastActivityStr.String)
		if err != nil {
			lastActivity, err = time.Parse(time.RFC3339Nano, lastActivityStr.String)
		}
	}
	return lastActivity, err
}

// VecIndexAvailable reports whether the approximate KNN index is usable.
func (s *Store) VecIndexAvailable() bool {
	return s.vecIdx != nil && s.vecIdx.available
}

// GetEmbedderDimensions returns the dimensions of the current embedder
func (s *Store) GetEmbedderDimensions() int {
	return s.embedder.Dimensions()
}

// Embedder returns the store's embedding collaborator.
func (s *Store) Embedder() Embedder {
	return s.embedder
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) scanEntry(rows *sql.Rows) (*KnowledgeEntry, error) {
	var e KnowledgeEntry
	var embeddingJSON, tagsJSON sql.NullString
	var category, source, originTicketID, originTicketType sql.NullString
	var decisionScope, author, branch sql.NullString
	var lastUsedAt sql.NullTime
	var active int

	err := rows.Scan(&e.ID, &e.Namespace, &e.Title, &e.Content, &embeddingJSON,
		&category, &tagsJSON, &source, &originTicketID, &originTicketType,
		&e.Confidence, &active, &decisionScope, &e.UsageCount, &lastUsedAt,
		&author, &branch, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.Active = active != 0
	if category.Valid {
		e.Category = category.String
	}
	if source.Valid {
		e.Source = source.String
	}
	if originTicketID.Valid {
		e.OriginTicketID = originTicketID.String
	}
	if originTicketType.Valid {
		e.OriginTicketType = originTicketType.String
	}
	if decisionScope.Valid {
		e.DecisionScope = decisionScope.String
	}
	if author.Valid {
		e.Author = author.String
	}
	if branch.Valid {
		e.Branch = branch.String
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		e.LastUsedAt = &t
	}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &e.Tags)
	}
	if embeddingJSON.Valid {
		json.Unmarshal([]byte(embeddingJSON.String), &e.Embedding)
	}

	return &e, nil
}

// attachCitations loads citation rows for the given entries in one query.
func (s *Store) attachCitations(ctx context.Context, entries []*KnowledgeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	placeholders := make([]string, len(entries))
	args := make([]interface{}, len(entries))
	byID := make(map[string]*KnowledgeEntry, len(entries))
	for i, e := range entries {
		placeholders[i] = "?"
		args[i] = e.ID
		byID[e.ID] = e
		e.Citations = nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, path, file_hash FROM citations
		 WHERE entry_id IN (`+strings.Join(placeholders, ",")+`)
		 ORDER BY entry_id, position`,
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var entryID string
		var c Citation
		if err := rows.Scan(&entryID, &c.Path, &c.FileHash); err != nil {
			continue
		}
		if e, ok := byID[entryID]; ok {
			e.Citations = append(e.Citations, c)
		}
	}
	return rows.Err()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
