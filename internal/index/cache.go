package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
	"github.com/JakeFAU/site-ingestor/internal/metrics"
)

// Answerer composes an answer from retrieved context.
type Answerer interface {
	Answer(ctx context.Context, question string, contexts []string, history []string) (string, error)
}

// Config tunes chunking, retrieval and embedding fan-out.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	EmbedBatchSize int
	PoolSize       int
	Model          string
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 100
	}
	if c.TopK <= 0 {
		c.TopK = 4
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 32
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	return c
}

// Cache is the two-tier retrieval index cache.
type Cache struct {
	cfg      Config
	durable  DurableTier
	docs     crawler.DocumentStore
	embedder embeddings.Embedder
	answerer Answerer
	splitter textsplitter.TextSplitter
	pool     *ants.Pool
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[string]*Index
	group   singleflight.Group
	builds  atomic.Int64
}

// New builds a Cache. Call Close to release the embedding pool.
func New(
	cfg Config,
	durable DurableTier,
	docs crawler.DocumentStore,
	embedder embeddings.Embedder,
	answerer Answerer,
	logger *zap.Logger,
) (*Cache, error) {
	switch {
	case durable == nil:
		return nil, errors.New("durable tier is required")
	case docs == nil:
		return nil, errors.New("document store is required")
	case embedder == nil:
		return nil, errors.New("embedder is required")
	case answerer == nil:
		return nil, errors.New("answerer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	return &Cache{
		cfg:      cfg,
		durable:  durable,
		docs:     docs,
		embedder: embedder,
		answerer: answerer,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		pool:    pool,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.Named("index"),
		entries: make(map[string]*Index),
	}, nil
}

// Close releases the embedding pool.
func (c *Cache) Close() {
	c.pool.Release()
}

// Builds reports how many index builds have started.
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}

// Cached reports whether docID has a memory entry.
func (c *Cache) Cached(docID string) bool {
	return c.lookup(docID) != nil
}

func (c *Cache) lookup(docID string) *Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[docID]
}

func (c *Cache) insert(ix *Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ix.DocID] = ix
}

// Warm loads every durable artifact into memory. Unreadable artifacts are
// logged and skipped. It returns how many were loaded.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	ids, err := c.durable.List(ctx)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, id := range ids {
		ix, err := c.durable.Load(ctx, id)
		if err != nil {
			c.logger.Warn("skipping unreadable index artifact", zap.String("doc_id", id), zap.Error(err))
			continue
		}
		c.insert(ix)
		loaded++
	}
	c.logger.Info("index cache warmed", zap.Int("loaded", loaded), zap.Int("artifacts", len(ids)))
	return loaded, nil
}

// Ensure makes an index for docID available in memory, loading it from the
// durable tier or building it from the document store. It reports false when
// the document has no content or the build fails; nothing is cached then.
func (c *Cache) Ensure(ctx context.Context, docID string) bool {
	_, err := c.ensure(ctx, docID)
	return err == nil
}

func (c *Cache) ensure(ctx context.Context, docID string) (*Index, error) {
	if ix := c.lookup(docID); ix != nil {
		metrics.ObserveIndexLookup(metrics.TierMemory)
		return ix, nil
	}

	v, err, _ := c.group.Do(docID, func() (any, error) {
		// A build that finished between the lookup and Do leaves a memory hit.
		if ix := c.lookup(docID); ix != nil {
			metrics.ObserveIndexLookup(metrics.TierMemory)
			return ix, nil
		}
		// Waiters share this build, so one caller's cancellation must not abort it.
		bctx := context.WithoutCancel(ctx)

		ix, err := c.durable.Load(bctx, docID)
		switch {
		case err == nil:
			metrics.ObserveIndexLookup(metrics.TierDurable)
			c.insert(ix)
			return ix, nil
		case !errors.Is(err, ErrArtifactNotFound):
			c.logger.Warn("durable index unreadable, rebuilding", zap.String("doc_id", docID), zap.Error(err))
		}
		metrics.ObserveIndexLookup(metrics.TierMiss)

		ix, err = c.build(bctx, docID)
		if err != nil {
			return nil, err
		}
		if err := c.durable.Save(bctx, ix); err != nil {
			return nil, fmt.Errorf("persist index %s: %w", docID, err)
		}
		c.insert(ix)
		return ix, nil
	})
	if err != nil {
		if errors.Is(err, errNoContent) {
			c.logger.Info("nothing to index", zap.String("doc_id", docID), zap.Error(err))
		} else {
			c.logger.Error("index build failed", zap.String("doc_id", docID), zap.Error(err))
		}
		return nil, err
	}
	return v.(*Index), nil
}

// Query answers question from the index of docID, building it on a miss.
// It fails with ErrNotPrepared when no index can be made available.
func (c *Cache) Query(ctx context.Context, docID, question string, history []string) (string, error) {
	ix, err := c.ensure(ctx, docID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotPrepared, docID)
	}
	vec, err := c.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	hits := ix.Search(vec, c.cfg.TopK)
	contexts := make([]string, 0, len(hits))
	for _, h := range hits {
		contexts = append(contexts, h.Text)
	}
	answer, err := c.answerer.Answer(ctx, question, contexts, history)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}
