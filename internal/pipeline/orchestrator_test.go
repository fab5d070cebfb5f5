package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-ingestor/internal/clock/system"
	"github.com/JakeFAU/site-ingestor/internal/crawler"
	"github.com/JakeFAU/site-ingestor/internal/extract"
	"github.com/JakeFAU/site-ingestor/internal/fetcher/headless"
	pubmemory "github.com/JakeFAU/site-ingestor/internal/publisher/memory"
	"github.com/JakeFAU/site-ingestor/internal/storage/memory"
)

type stubProfiler struct {
	report *crawler.TechReport
}

func (s stubProfiler) Report(context.Context, string) *crawler.TechReport {
	return s.report
}

type stubIndexer struct {
	mu    sync.Mutex
	ok    bool
	calls []string
}

func (s *stubIndexer) Ensure(_ context.Context, docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, docID)
	return s.ok
}

// statusRecorder counts status writes on top of the memory store.
type statusRecorder struct {
	*memory.Store
	mu       sync.Mutex
	statuses []crawler.SessionStatus
}

func (s *statusRecorder) SetSessionStatus(ctx context.Context, id string, status crawler.SessionStatus) error {
	s.mu.Lock()
	s.statuses = append(s.statuses, status)
	s.mu.Unlock()
	return s.Store.SetSessionStatus(ctx, id, status)
}

type panicCrawler struct{}

func (panicCrawler) Run(context.Context, string, crawler.Fetcher) (crawler.DocumentContent, error) {
	panic("boom")
}

// site serves fixed markup per URL and records which fetcher served it.
type site struct {
	mu     sync.Mutex
	pages  map[string]string
	served []string
}

func (s *site) fetcher(name string) crawler.Fetcher {
	return crawler.FetcherFunc(func(_ context.Context, url string) (string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.served = append(s.served, name)
		markup, ok := s.pages[url]
		if !ok {
			return "", errors.New("not found")
		}
		return markup, nil
	})
}

func newSite() *site {
	return &site{pages: map[string]string{
		"https://example.com/":      `<html><body><main><p>Welcome</p><a href="/about">About</a></main></body></html>`,
		"https://example.com/about": `<html><body><main><p>About us</p></main></body></html>`,
	}}
}

type fixture struct {
	store     *statusRecorder
	blobs     *memory.BlobStore
	publisher *pubmemory.Publisher
	indexer   *stubIndexer
	site      *site
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     &statusRecorder{Store: memory.NewStore()},
		blobs:     memory.NewBlobStore(),
		publisher: pubmemory.New(),
		indexer:   &stubIndexer{ok: true},
		site:      newSite(),
	}
	f.deps = Deps{
		Store:     f.store,
		Profiler:  stubProfiler{report: &crawler.TechReport{Technologies: []string{"nginx"}}},
		Crawler:   crawler.NewScheduler(extract.Extractor{}, crawler.SchedulerConfig{}, nil),
		Static:    f.site.fetcher("static"),
		Dynamic:   f.site.fetcher("dynamic"),
		Sink:      f.blobs,
		Indexer:   f.indexer,
		Publisher: f.publisher,
		Clock:     system.NewStepped(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Second),
	}
	return f
}

func (f *fixture) run(t *testing.T) Result {
	t.Helper()
	o, err := New(f.deps, Config{Topic: "sessions"}, nil)
	require.NoError(t, err)
	return o.Run(context.Background(), Job{SeedURL: "https://example.com/", DocID: "doc-1", SessionID: "sess-1"})
}

func TestRunReady(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.run(t)

	require.NoError(t, res.Err)
	assert.Equal(t, crawler.SessionStatusReady, res.Status)
	assert.Equal(t, crawler.StrategyStatic, res.Strategy)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "memory://doc-1.json", res.ArtifactURI)
	assert.Equal(t, []crawler.SessionStatus{crawler.SessionStatusReady}, f.store.statuses)
	assert.Equal(t, []string{"doc-1"}, f.indexer.calls)

	doc, err := f.store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", doc.WebsiteURL)
	assert.Equal(t, []string{"nginx"}, doc.Content.Technologies)
	require.Len(t, doc.Content.Pages, 2)
	assert.Equal(t, "home", doc.Content.Pages[0].Title)
	assert.Equal(t, "about", doc.Content.Pages[1].Title)

	data, err := f.blobs.GetObject(context.Background(), "doc-1.json")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"About us"`))

	session, err := f.store.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, crawler.SessionStatusReady, session.Status)

	msgs := f.publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "sessions", msgs[0].Topic)
	event, ok := msgs[0].Payload.(crawler.SessionEvent)
	require.True(t, ok)
	assert.Equal(t, crawler.SessionStatusReady, event.Status)
	assert.Equal(t, 2, event.Pages)
}

func TestRunZeroPagesFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.site.pages = map[string]string{}
	res := f.run(t)

	assert.ErrorIs(t, res.Err, errNoPages)
	assert.Equal(t, crawler.SessionStatusFailed, res.Status)
	assert.Equal(t, []crawler.SessionStatus{crawler.SessionStatusFailed}, f.store.statuses)
	assert.Empty(t, f.indexer.calls)

	doc, err := f.store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, doc.Content.Empty())

	paths, err := f.blobs.ListObjects(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestRunIndexFailureLeavesDocument(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.indexer.ok = false
	res := f.run(t)

	require.Error(t, res.Err)
	assert.Equal(t, crawler.SessionStatusFailed, res.Status)

	doc, err := f.store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, doc.Content.Pages, 2)
}

func TestRunRecoversPanicOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.deps.Crawler = panicCrawler{}
	res := f.run(t)

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
	assert.Equal(t, crawler.SessionStatusFailed, res.Status)
	assert.Equal(t, []crawler.SessionStatus{crawler.SessionStatusFailed}, f.store.statuses)
	assert.Len(t, f.publisher.Messages(), 1)
}

func TestRunStrategySelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		report   *crawler.TechReport
		dynamic  func(*site) crawler.Fetcher
		want     crawler.Strategy
		wantUsed string
	}{
		{
			name:     "framework uses dynamic",
			report:   &crawler.TechReport{Technologies: []string{"React"}},
			dynamic:  func(s *site) crawler.Fetcher { return s.fetcher("dynamic") },
			want:     crawler.StrategyDynamic,
			wantUsed: "dynamic",
		},
		{
			name:     "missing report uses dynamic",
			report:   nil,
			dynamic:  func(s *site) crawler.Fetcher { return s.fetcher("dynamic") },
			want:     crawler.StrategyDynamic,
			wantUsed: "dynamic",
		},
		{
			name:     "disabled dynamic falls back",
			report:   &crawler.TechReport{Technologies: []string{"datadome"}},
			dynamic:  func(*site) crawler.Fetcher { return headless.NewNoop() },
			want:     crawler.StrategyStatic,
			wantUsed: "static",
		},
		{
			name:     "nil dynamic falls back",
			report:   &crawler.TechReport{Technologies: []string{"vue.js"}},
			dynamic:  func(*site) crawler.Fetcher { return nil },
			want:     crawler.StrategyStatic,
			wantUsed: "static",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.deps.Profiler = stubProfiler{report: tt.report}
			f.deps.Dynamic = tt.dynamic(f.site)
			res := f.run(t)

			require.NoError(t, res.Err)
			assert.Equal(t, tt.want, res.Strategy)
			require.NotEmpty(t, f.site.served)
			for _, used := range f.site.served {
				assert.Equal(t, tt.wantUsed, used)
			}
		})
	}
}

func TestRunSessionFailureSkipsStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.store.UpsertDocument(context.Background(), crawler.Document{DocID: "other"}))
	require.NoError(t, f.store.CreateSession(context.Background(), crawler.Session{ID: "sess-1", DocID: "other"}))

	res := f.run(t)

	require.Error(t, res.Err)
	assert.Equal(t, crawler.SessionStatusFailed, res.Status)
	assert.Empty(t, f.store.statuses)
	assert.Empty(t, f.publisher.Messages())
}

func TestNewValidatesDeps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, mutate := range []func(*Deps){
		func(d *Deps) { d.Store = nil },
		func(d *Deps) { d.Profiler = nil },
		func(d *Deps) { d.Crawler = nil },
		func(d *Deps) { d.Static = nil },
		func(d *Deps) { d.Indexer = nil },
	} {
		deps := f.deps
		mutate(&deps)
		_, err := New(deps, Config{}, nil)
		assert.Error(t, err)
	}
}
