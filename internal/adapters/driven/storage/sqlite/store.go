// Package sqlite implements the durable storage ports on a single SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tessera-labs/recall/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// document and session store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.recall/data/recall.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recall", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "recall.db")

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// SessionStore returns a SessionStore interface backed by this store.
func (s *Store) SessionStore() driven.SessionStore {
	return &sessionStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document. The row's seq is assigned on
// first insert and survives updates; it is written back to doc.Seq.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.SourceDocument) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	authorsJSON, err := json.Marshal(doc.Authors)
	if err != nil {
		return fmt.Errorf("marshalling authors: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	var publishedAt sql.NullTime
	if doc.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: *doc.PublishedAt, Valid: true}
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (source_id, title, authors, url, published_at, source_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			title = excluded.title,
			authors = excluded.authors,
			url = excluded.url,
			published_at = excluded.published_at,
			source_type = excluded.source_type,
			updated_at = excluded.updated_at
	`, doc.SourceID, doc.Title, string(authorsJSON), doc.URL,
		publishedAt, string(doc.SourceType), doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	row := s.store.db.QueryRowContext(ctx,
		"SELECT seq, created_at FROM documents WHERE source_id = ?", doc.SourceID)
	var createdAt sql.NullTime
	if err := row.Scan(&doc.Seq, &createdAt); err != nil {
		return fmt.Errorf("reading back document seq: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}

	return nil
}

// GetDocument retrieves a document by source id.
func (s *documentStore) GetDocument(ctx context.Context, sourceID string) (*domain.SourceDocument, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT seq, source_id, title, authors, url, published_at, source_type, created_at, updated_at
		FROM documents WHERE source_id = ?
	`, sourceID)

	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListDocuments returns all documents in insertion order.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.SourceDocument, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT seq, source_id, title, authors, url, published_at, source_type, created_at, updated_at
		FROM documents ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.SourceDocument //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// ReplacePassages atomically replaces the passage set of a document.
func (s *documentStore) ReplacePassages(ctx context.Context, sourceID string, passages []domain.Passage) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM passages WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("clearing passages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (id, source_id, source_type, content, position, token_count, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range passages {
		embeddingBlob := float32SliceToBytes(p.Embedding)
		if _, err := stmt.ExecContext(ctx, p.ID, p.SourceID, string(p.SourceType),
			p.Text, p.Offset, p.TokenCount, embeddingBlob); err != nil {
			return fmt.Errorf("saving passage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetPassage retrieves a passage by id.
func (s *documentStore) GetPassage(ctx context.Context, id string) (*domain.Passage, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_id, source_type, content, position, token_count, embedding
		FROM passages WHERE id = ?
	`, id)

	p, err := scanPassage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return p, err
}

// ListPassages returns a document's passages in offset order.
func (s *documentStore) ListPassages(ctx context.Context, sourceID string) ([]domain.Passage, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_id, source_type, content, position, token_count, embedding
		FROM passages WHERE source_id = ?
		ORDER BY position
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage //nolint:prealloc // size unknown from query
	for rows.Next() {
		p, err := scanPassage(rows.Scan)
		if err != nil {
			return nil, err
		}
		passages = append(passages, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}

	return passages, nil
}

// DeleteDocument removes a document and its passages.
func (s *documentStore) DeleteDocument(ctx context.Context, sourceID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// metaEmbeddingModel is the meta key recording which embedding model
// produced the stored passage embeddings.
const metaEmbeddingModel = "embedding_model"

// EmbeddingModel returns the recorded embedding model name, or "" when none
// has been set.
func (s *documentStore) EmbeddingModel(ctx context.Context) (string, error) {
	var value string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", metaEmbeddingModel).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("reading embedding model: %w", err)
	}
	return value, nil
}

// SetEmbeddingModel records the embedding model that produced the stored
// embeddings.
func (s *documentStore) SetEmbeddingModel(ctx context.Context, model string) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaEmbeddingModel, model)
	if err != nil {
		return fmt.Errorf("recording embedding model: %w", err)
	}
	return nil
}

// ==================== Session Store ====================

// sessionStore implements driven.SessionStore.
type sessionStore struct {
	store *Store
}

var _ driven.SessionStore = (*sessionStore)(nil)

// AppendTurn commits a turn, creating the session when needed. The turn's
// position is assigned inside the transaction so concurrent appends never
// collide.
func (s *sessionStore) AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error {
	if sessionID == "" || turn.ID == "" {
		return domain.ErrInvalidInput
	}

	passageIDsJSON, err := json.Marshal(turn.PassageIDs)
	if err != nil {
		return fmt.Errorf("marshalling passage ids: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, sessionID, now, now); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	var position int
	row := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), 0) + 1 FROM turns WHERE session_id = ?", sessionID)
	if err := row.Scan(&position); err != nil {
		return fmt.Errorf("assigning turn position: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, position, query, answer, passage_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, turn.ID, sessionID, position, turn.Query, turn.Answer,
		string(passageIDsJSON), turn.Timestamp); err != nil {
		return fmt.Errorf("saving turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Turns returns up to limit turns for a session, most recent first. A
// non-positive limit returns all turns.
func (s *sessionStore) Turns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, query, answer, passage_ids, created_at
		FROM turns WHERE session_id = ?
		ORDER BY position DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// ListSessions returns all sessions with their turn counts.
func (s *sessionStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT s.id, s.created_at, s.updated_at, COUNT(t.id)
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at, s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sess domain.Session
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&sess.ID, &createdAt, &updatedAt, &sess.TurnCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if createdAt.Valid {
			sess.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			sess.UpdatedAt = updatedAt.Time
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session and its turns.
func (s *sessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// SearchTurns returns turns whose query or answer contains the given text,
// most recent first.
func (s *sessionStore) SearchTurns(ctx context.Context, query string) ([]domain.Turn, error) {
	pattern := "%" + query + "%"
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, query, answer, passage_ids, created_at
		FROM turns
		WHERE query LIKE ? OR answer LIKE ?
		ORDER BY created_at DESC, position DESC
	`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("searching turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanDocument scans a document row through the given scan function.
func scanDocument(scan func(dest ...any) error) (*domain.SourceDocument, error) {
	var doc domain.SourceDocument
	var authorsJSON, sourceType string
	var publishedAt, createdAt, updatedAt sql.NullTime

	if err := scan(&doc.Seq, &doc.SourceID, &doc.Title, &authorsJSON, &doc.URL,
		&publishedAt, &sourceType, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if err := json.Unmarshal([]byte(authorsJSON), &doc.Authors); err != nil {
		return nil, fmt.Errorf("unmarshaling authors: %w", err)
	}

	doc.SourceType = domain.SourceType(sourceType)
	if publishedAt.Valid {
		t := publishedAt.Time
		doc.PublishedAt = &t
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}

	return &doc, nil
}

// scanPassage scans a passage row through the given scan function.
func scanPassage(scan func(dest ...any) error) (*domain.Passage, error) {
	var p domain.Passage
	var sourceType string
	var embeddingBlob []byte

	if err := scan(&p.ID, &p.SourceID, &sourceType, &p.Text,
		&p.Offset, &p.TokenCount, &embeddingBlob); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning passage: %w", err)
	}

	p.SourceType = domain.SourceType(sourceType)
	p.Embedding = bytesToFloat32Slice(embeddingBlob)

	return &p, nil
}

// scanTurns scans multiple turn rows.
func scanTurns(rows *sql.Rows) ([]domain.Turn, error) {
	var turns []domain.Turn //nolint:prealloc // size unknown from query
	for rows.Next() {
		var turn domain.Turn
		var passageIDsJSON string
		var timestamp sql.NullTime
		if err := rows.Scan(&turn.ID, &turn.Query, &turn.Answer, &passageIDsJSON, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		if err := json.Unmarshal([]byte(passageIDsJSON), &turn.PassageIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling passage ids: %w", err)
		}
		if timestamp.Valid {
			turn.Timestamp = timestamp.Time
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	return turns, nil
}
