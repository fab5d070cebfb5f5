// Package sqlite provides an embedded document and session store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

// FileName is the database file created inside the configured directory.
const FileName = "ingestor.db"

// timeFormat keeps stored timestamps sortable as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id      TEXT PRIMARY KEY,
	website_url TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '{}',
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id   TEXT PRIMARY KEY,
	doc_id       TEXT NOT NULL REFERENCES documents(doc_id),
	created_at   TEXT NOT NULL,
	conversation TEXT NOT NULL DEFAULT '[]',
	status       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
`

// Store implements crawler.Store on a single SQLite file.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ crawler.Store = (*Store)(nil)

// Open opens or creates the database under dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage.sqlite_dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	path := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps per-connection pragmas.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertDocument inserts or replaces a document.
func (s *Store) UpsertDocument(ctx context.Context, doc crawler.Document) error {
	content, err := json.Marshal(doc.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, website_url, content, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			website_url = excluded.website_url,
			content = excluded.content,
			updated_at = excluded.updated_at`,
		doc.DocID, doc.WebsiteURL, string(content), s.now().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// GetDocument returns a document or crawler.ErrDocumentNotFound.
func (s *Store) GetDocument(ctx context.Context, docID string) (crawler.Document, error) {
	var content, updated string
	doc := crawler.Document{DocID: docID}
	err := s.db.QueryRowContext(ctx,
		`SELECT website_url, content, updated_at FROM documents WHERE doc_id = ?`, docID,
	).Scan(&doc.WebsiteURL, &content, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.Document{}, fmt.Errorf("%w: %s", crawler.ErrDocumentNotFound, docID)
	}
	if err != nil {
		return crawler.Document{}, fmt.Errorf("get document: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &doc.Content); err != nil {
		return crawler.Document{}, fmt.Errorf("decode document %s: %w", docID, err)
	}
	if doc.UpdatedAt, err = time.Parse(timeFormat, updated); err != nil {
		return crawler.Document{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return doc, nil
}

// CreateSession inserts a session. The referenced document must exist.
func (s *Store) CreateSession(ctx context.Context, session crawler.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}
	if session.Status == "" {
		session.Status = crawler.SessionStatusProcessing
	}
	conversation, err := json.Marshal(nonNil(session.Conversation))
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, doc_id, created_at, conversation, status)
		SELECT ?, doc_id, ?, ?, ? FROM documents WHERE doc_id = ?`,
		session.ID, session.CreatedAt.UTC().Format(timeFormat), string(conversation), string(session.Status), session.DocID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("create session %s: %w: %s", session.ID, crawler.ErrDocumentNotFound, session.DocID)
	}
	return nil
}

// SetSessionStatus updates a session's status.
func (s *Store) SetSessionStatus(ctx context.Context, sessionID string, status crawler.SessionStatus) error {
	return s.updateSession(ctx, sessionID, `UPDATE sessions SET status = ? WHERE session_id = ?`, string(status))
}

// SetConversation replaces a session's conversation.
func (s *Store) SetConversation(ctx context.Context, sessionID string, conversation []string) error {
	data, err := json.Marshal(nonNil(conversation))
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	return s.updateSession(ctx, sessionID, `UPDATE sessions SET conversation = ? WHERE session_id = ?`, string(data))
}

func (s *Store) updateSession(ctx context.Context, sessionID, query string, value any) error {
	res, err := s.db.ExecContext(ctx, query, value, sessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", crawler.ErrSessionNotFound, sessionID)
	}
	return nil
}

const sessionQuery = `
	SELECT s.session_id, s.doc_id, s.created_at, s.conversation, s.status, d.website_url
	FROM sessions s
	JOIN documents d ON d.doc_id = s.doc_id`

type scanner interface {
	Scan(dest ...any) error
}

// GetSession returns a session joined with its document's website URL.
func (s *Store) GetSession(ctx context.Context, sessionID string) (crawler.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, sessionQuery+` WHERE s.session_id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.Session{}, fmt.Errorf("%w: %s", crawler.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return crawler.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]crawler.Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionQuery+` ORDER BY s.created_at DESC, s.session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := []crawler.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row scanner) (crawler.Session, error) {
	var (
		session                       crawler.Session
		created, conversation, status string
	)
	if err := row.Scan(&session.ID, &session.DocID, &created, &conversation, &status, &session.WebsiteURL); err != nil {
		return crawler.Session{}, err
	}
	var err error
	if session.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return crawler.Session{}, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(conversation), &session.Conversation); err != nil {
		return crawler.Session{}, fmt.Errorf("decode conversation: %w", err)
	}
	session.Conversation = nonNil(session.Conversation)
	session.Status = crawler.SessionStatus(status)
	return session, nil
}

func nonNil(conversation []string) []string {
	if conversation == nil {
		return []string{}
	}
	return conversation
}
