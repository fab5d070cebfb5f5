package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/config"
	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><main><p>Welcome to the bakery.</p><a href="/menu">Menu</a></main></body></html>`)
	})
	mux.HandleFunc("/menu", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><main><p>Sourdough bread is baked every morning.</p></main></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, root string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage = config.StorageConfig{Provider: "sqlite", SQLiteDir: filepath.Join(root, "db")}
	cfg.Artifacts = config.ArtifactsConfig{Provider: "local", Dir: filepath.Join(root, "documents")}
	cfg.Index.Durable = "local"
	cfg.Index.Dir = filepath.Join(root, "index")
	cfg.LLM.Provider = "offline"
	cfg.Events.Provider = "memory"
	cfg.Profiler.TimeoutSec = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestAppIngestsAndAnswers(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	root := t.TempDir()
	ctx := context.Background()

	a, err := New(ctx, testConfig(t, root), zap.NewNop())
	require.NoError(t, err)

	job, err := a.NewJob(site.URL)
	require.NoError(t, err)
	res := a.Orchestrator.Run(ctx, job)
	require.NoError(t, res.Err)
	assert.Equal(t, crawler.SessionStatusReady, res.Status)
	assert.Equal(t, crawler.StrategyStatic, res.Strategy)
	assert.Equal(t, 2, res.Pages)
	assert.FileExists(t, filepath.Join(root, "documents", job.DocID+".json"))

	session, err := a.Store.GetSession(ctx, job.SessionID)
	require.NoError(t, err)
	assert.Equal(t, crawler.SessionStatusReady, session.Status)

	answer, err := a.Cache.Query(ctx, job.DocID, "When is the sourdough bread baked?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "Sourdough")
	a.Close()

	// A second process over the same directories answers from the durable tier.
	b, err := New(ctx, testConfig(t, root), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	warmed, err := b.Cache.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, warmed)
	_, err = b.Cache.Query(ctx, job.DocID, "bakery?", nil)
	require.NoError(t, err)
	assert.Zero(t, b.Cache.Builds())
}

func TestAppRejectsUnknownProviders(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, t.TempDir())
	cfg.Storage.Provider = "mongo"
	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNewJobAssignsDistinctIDs(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(t, t.TempDir()), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	job, err := a.NewJob("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", job.SeedURL)
	assert.NotEqual(t, job.DocID, job.SessionID)
	assert.NotNil(t, a.Server().Handler())
}
