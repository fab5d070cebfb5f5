package crawler

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrDocumentNotFound is returned when a store has no document for a doc ID.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrSessionNotFound is returned when a store has no session for an ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSeed is returned when a seed URL has no http(s) scheme or host.
	ErrInvalidSeed = errors.New("invalid seed url")
)

// DocumentStore persists assembled documents.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, docID string) (Document, error)
}

// SessionStore persists ingestion sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	SetSessionStatus(ctx context.Context, sessionID string, status SessionStatus) error
	SetConversation(ctx context.Context, sessionID string, conversation []string) error
	GetSession(ctx context.Context, sessionID string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
}

// Store is the combined document and session store.
type Store interface {
	DocumentStore
	SessionStore
}

// ArtifactSink writes raw artifacts and returns a URI.
type ArtifactSink interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes session events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher returns the markup for a URL. An error or an empty string means
// the page is unusable and should be skipped.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (string, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// Pacer delays requests to respect per-host politeness limits.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces doc and session IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
