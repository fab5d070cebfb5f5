package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
	"github.com/JakeFAU/site-ingestor/internal/metrics"
	"github.com/JakeFAU/site-ingestor/internal/telemetry"
)

// build reads the document, chunks its text and embeds the chunks.
func (c *Cache) build(ctx context.Context, docID string) (*Index, error) {
	doc, err := c.docs.GetDocument(ctx, docID)
	if errors.Is(err, crawler.ErrDocumentNotFound) {
		return nil, fmt.Errorf("%w: %s", errNoContent, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", docID, err)
	}
	if doc.Content.Empty() {
		return nil, fmt.Errorf("%w: %s", errNoContent, docID)
	}

	c.builds.Add(1)
	ctx, span := telemetry.StartSpan(ctx, "index.build", attribute.String("doc_id", docID))
	start := time.Now()
	ix, err := c.buildFrom(ctx, docID, doc)
	telemetry.EndSpan(span, err)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveIndexBuild(outcome, time.Since(start))
	if err != nil {
		return nil, err
	}
	c.logger.Info("index built",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(ix.Chunks)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ix, nil
}

func (c *Cache) buildFrom(ctx context.Context, docID string, doc crawler.Document) (*Index, error) {
	texts, err := c.splitter.SplitText(SourceText(doc.Content))
	if err != nil {
		return nil, fmt.Errorf("split document %s: %w", docID, err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %s", errNoContent, docID)
	}
	vectors, err := c.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, len(texts))
	for i := range texts {
		chunks[i] = Chunk{Text: texts[i], Vector: vectors[i]}
	}
	source := doc.Content.WebsiteURL
	if source == "" {
		source = doc.WebsiteURL
	}
	return &Index{
		DocID:   docID,
		Source:  source,
		Model:   c.cfg.Model,
		BuiltAt: c.now(),
		Chunks:  chunks,
	}, nil
}

// embedAll embeds texts in batches on the pool, preserving order.
func (c *Cache) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for start := 0; start < len(texts); start += c.cfg.EmbedBatchSize {
		end := min(start+c.cfg.EmbedBatchSize, len(texts))
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			out, err := c.embedder.EmbedDocuments(ctx, texts[start:end])
			if err != nil {
				fail(fmt.Errorf("embed chunks %d-%d: %w", start, end, err))
				return
			}
			if len(out) != end-start {
				fail(fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(out)))
				return
			}
			copy(vectors[start:end], out)
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding batch: %w", err))
			break
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}
