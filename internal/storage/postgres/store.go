// Package postgres provides Postgres-backed document and session stores.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

// foreignKeyViolation is the SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// Schema creates the documents and sessions tables.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id      TEXT PRIMARY KEY,
	website_url TEXT NOT NULL,
	content     JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	session_id   TEXT PRIMARY KEY,
	doc_id       TEXT NOT NULL REFERENCES documents (doc_id),
	created_at   TIMESTAMPTZ NOT NULL,
	conversation JSONB NOT NULL DEFAULT '[]'::jsonb,
	status       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_created_at_idx ON sessions (created_at DESC);`

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store implements crawler.Store on Postgres.
type Store struct {
	pool pool
	now  func() time.Time
}

var _ crawler.Store = (*Store)(nil)

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(p)
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertDocument inserts or replaces a document.
func (s *Store) UpsertDocument(ctx context.Context, doc crawler.Document) error {
	content, err := json.Marshal(doc.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	query := `
		INSERT INTO documents (doc_id, website_url, content, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doc_id) DO UPDATE
		SET website_url = EXCLUDED.website_url,
		    content = EXCLUDED.content,
		    updated_at = EXCLUDED.updated_at;
	`
	if _, err := s.pool.Exec(ctx, query, doc.DocID, doc.WebsiteURL, content, s.now()); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// GetDocument returns a document or crawler.ErrDocumentNotFound.
func (s *Store) GetDocument(ctx context.Context, docID string) (crawler.Document, error) {
	query := `
		SELECT website_url, content, updated_at
		FROM documents
		WHERE doc_id = $1;
	`
	doc := crawler.Document{DocID: docID}
	var content []byte
	err := s.pool.QueryRow(ctx, query, docID).Scan(&doc.WebsiteURL, &content, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawler.Document{}, fmt.Errorf("%w: %s", crawler.ErrDocumentNotFound, docID)
		}
		return crawler.Document{}, fmt.Errorf("get document: %w", err)
	}
	if err := json.Unmarshal(content, &doc.Content); err != nil {
		return crawler.Document{}, fmt.Errorf("decode document %s: %w", docID, err)
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
	query := `
		INSERT INTO sessions (session_id, doc_id, created_at, conversation, status)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err = s.pool.Exec(ctx, query, session.ID, session.DocID, session.CreatedAt, conversation, string(session.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("create session %s: %w: %s", session.ID, crawler.ErrDocumentNotFound, session.DocID)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SetSessionStatus updates a session's status.
func (s *Store) SetSessionStatus(ctx context.Context, sessionID string, status crawler.SessionStatus) error {
	query := `UPDATE sessions SET status = $2 WHERE session_id = $1;`
	tag, err := s.pool.Exec(ctx, query, sessionID, string(status))
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", crawler.ErrSessionNotFound, sessionID)
	}
	return nil
}

// SetConversation replaces a session's conversation.
func (s *Store) SetConversation(ctx context.Context, sessionID string, conversation []string) error {
	data, err := json.Marshal(nonNil(conversation))
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	query := `UPDATE sessions SET conversation = $2 WHERE session_id = $1;`
	tag, err := s.pool.Exec(ctx, query, sessionID, data)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", crawler.ErrSessionNotFound, sessionID)
	}
	return nil
}

const sessionColumns = `s.session_id, s.doc_id, s.created_at, s.conversation, s.status, d.website_url`

// GetSession returns a session joined with its document's website URL.
func (s *Store) GetSession(ctx context.Context, sessionID string) (crawler.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions s
		JOIN documents d ON d.doc_id = s.doc_id
		WHERE s.session_id = $1;
	`
	session, err := scanSession(s.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawler.Session{}, fmt.Errorf("%w: %s", crawler.ErrSessionNotFound, sessionID)
		}
		return crawler.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]crawler.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions s
		JOIN documents d ON d.doc_id = s.doc_id
		ORDER BY s.created_at DESC;
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

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

func scanSession(row pgx.Row) (crawler.Session, error) {
	var (
		session      crawler.Session
		conversation []byte
		status       string
	)
	if err := row.Scan(
		&session.ID,
		&session.DocID,
		&session.CreatedAt,
		&conversation,
		&status,
		&session.WebsiteURL,
	); err != nil {
		return crawler.Session{}, err
	}
	session.Status = crawler.SessionStatus(status)
	if err := json.Unmarshal(conversation, &session.Conversation); err != nil {
		return crawler.Session{}, fmt.Errorf("decode conversation: %w", err)
	}
	session.Conversation = nonNil(session.Conversation)
	return session, nil
}

func nonNil(conversation []string) []string {
	if conversation == nil {
		return []string{}
	}
	return conversation
}
