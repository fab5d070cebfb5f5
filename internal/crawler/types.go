package crawler

import (
	"net/http"
	"time"
)

// SessionStatus represents the lifecycle state of an ingestion session.
type SessionStatus string

// Session status values persisted in the session store.
const (
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusReady      SessionStatus = "ready"
	SessionStatusFailed     SessionStatus = "failed"
)

// Terminal reports whether no further pipeline transition is expected.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusReady || s == SessionStatusFailed
}

// Strategy names the fetch back-end chosen for a crawl run.
type Strategy string

// Fetch strategies.
const (
	StrategyStatic  Strategy = "static"
	StrategyDynamic Strategy = "dynamic"
)

// Session is the chat-facing record tracking one ingestion.
type Session struct {
	ID           string        `json:"session_id"`
	DocID        string        `json:"doc_id"`
	CreatedAt    time.Time     `json:"created_at"`
	Conversation []string      `json:"conversation"`
	Status       SessionStatus `json:"status"`
	WebsiteURL   string        `json:"website_url,omitempty"`
}

// Page is one crawled page. Immutable once appended to a document.
type Page struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// DocumentContent is the assembled crawl result stored as the document body.
type DocumentContent struct {
	WebsiteURL   string    `json:"website_url"`
	Timestamp    time.Time `json:"timestamp"`
	Technologies []string  `json:"technologies"`
	Pages        []Page    `json:"pages"`
}

// Empty reports whether the content holds no pages.
func (c DocumentContent) Empty() bool {
	return len(c.Pages) == 0
}

// Document joins a doc ID to its website and content.
type Document struct {
	DocID      string          `json:"doc_id"`
	WebsiteURL string          `json:"website_url"`
	Content    DocumentContent `json:"content"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// FetchResponse is the raw result of a probe request.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// SessionEvent is published when a session reaches a terminal status.
type SessionEvent struct {
	SessionID string        `json:"session_id"`
	DocID     string        `json:"doc_id"`
	Status    SessionStatus `json:"status"`
	Pages     int           `json:"pages"`
	Strategy  Strategy      `json:"strategy,omitempty"`
	At        time.Time     `json:"at"`
}
