package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

// Store keeps documents and sessions in maps guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]crawler.Document
	sessions map[string]crawler.Session
	now      func() time.Time
}

var _ crawler.Store = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		docs:     make(map[string]crawler.Document),
		sessions: make(map[string]crawler.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpsertDocument inserts or replaces a document.
func (s *Store) UpsertDocument(_ context.Context, doc crawler.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.UpdatedAt = s.now()
	doc.Content.Pages = append([]crawler.Page(nil), doc.Content.Pages...)
	s.docs[doc.DocID] = doc
	return nil
}

// GetDocument returns a document or crawler.ErrDocumentNotFound.
func (s *Store) GetDocument(_ context.Context, docID string) (crawler.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return crawler.Document{}, fmt.Errorf("%w: %s", crawler.ErrDocumentNotFound, docID)
	}
	doc.Content.Pages = append([]crawler.Page(nil), doc.Content.Pages...)
	return doc, nil
}

// CreateSession stores a new session. The referenced document must exist.
func (s *Store) CreateSession(_ context.Context, session crawler.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[session.DocID]; !ok {
		return fmt.Errorf("create session %s: %w: %s", session.ID, crawler.ErrDocumentNotFound, session.DocID)
	}
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}
	if session.Status == "" {
		session.Status = crawler.SessionStatusProcessing
	}
	if session.Conversation == nil {
		session.Conversation = []string{}
	}
	s.sessions[session.ID] = session
	return nil
}

// SetSessionStatus updates a session's status.
func (s *Store) SetSessionStatus(_ context.Context, sessionID string, status crawler.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", crawler.ErrSessionNotFound, sessionID)
	}
	session.Status = status
	s.sessions[sessionID] = session
	return nil
}

// SetConversation replaces a session's conversation.
func (s *Store) SetConversation(_ context.Context, sessionID string, conversation []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", crawler.ErrSessionNotFound, sessionID)
	}
	session.Conversation = append([]string(nil), conversation...)
	s.sessions[sessionID] = session
	return nil
}

// GetSession returns a session joined with its document's website URL.
func (s *Store) GetSession(_ context.Context, sessionID string) (crawler.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return crawler.Session{}, fmt.Errorf("%w: %s", crawler.ErrSessionNotFound, sessionID)
	}
	return s.withWebsite(session), nil
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(_ context.Context) ([]crawler.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, s.withWebsite(session))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) withWebsite(session crawler.Session) crawler.Session {
	session.Conversation = append([]string(nil), session.Conversation...)
	if doc, ok := s.docs[session.DocID]; ok {
		session.WebsiteURL = doc.WebsiteURL
	}
	return session
}
