package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

func TestStoreDocuments(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	_, err := s.GetDocument(ctx, "missing")
	require.ErrorIs(t, err, crawler.ErrDocumentNotFound)

	require.NoError(t, s.UpsertDocument(ctx, crawler.Document{DocID: "d1", WebsiteURL: "https://example.com"}))
	doc, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, doc.Content.Empty())

	require.NoError(t, s.UpsertDocument(ctx, crawler.Document{
		DocID:      "d1",
		WebsiteURL: "https://example.com",
		Content:    crawler.DocumentContent{Pages: []crawler.Page{{Title: "home", URL: "https://example.com/", Content: "hi"}}},
	}))
	doc, err = s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, doc.Content.Pages, 1)
	assert.False(t, doc.UpdatedAt.IsZero())
}

func TestStoreSessions(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	err := s.CreateSession(ctx, crawler.Session{ID: "s1", DocID: "d1"})
	require.ErrorIs(t, err, crawler.ErrDocumentNotFound, "documents must exist before sessions")

	require.NoError(t, s.UpsertDocument(ctx, crawler.Document{DocID: "d1", WebsiteURL: "https://example.com"}))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateSession(ctx, crawler.Session{ID: "s1", DocID: "d1", CreatedAt: base}))
	require.NoError(t, s.CreateSession(ctx, crawler.Session{ID: "s2", DocID: "d1", CreatedAt: base.Add(time.Minute)}))
	require.Error(t, s.CreateSession(ctx, crawler.Session{ID: "s1", DocID: "d1"}))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, crawler.SessionStatusProcessing, got.Status)
	assert.Equal(t, "https://example.com", got.WebsiteURL)
	assert.Empty(t, got.Conversation)

	require.NoError(t, s.SetSessionStatus(ctx, "s1", crawler.SessionStatusReady))
	require.NoError(t, s.SetConversation(ctx, "s1", []string{"q", "a"}))
	got, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, crawler.SessionStatusReady, got.Status)
	assert.Equal(t, []string{"q", "a"}, got.Conversation)

	require.ErrorIs(t, s.SetSessionStatus(ctx, "nope", crawler.SessionStatusFailed), crawler.ErrSessionNotFound)
	require.ErrorIs(t, s.SetConversation(ctx, "nope", nil), crawler.ErrSessionNotFound)
	_, err = s.GetSession(ctx, "nope")
	require.ErrorIs(t, err, crawler.ErrSessionNotFound)

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID)
	assert.Equal(t, "s1", list[1].ID)
}
