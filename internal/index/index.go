// Package index builds, caches and queries per-document retrieval indexes.
//
// A Cache keeps built indexes in memory in front of a durable tier. Every
// memory entry has a durable artifact; durable artifacts without a memory
// entry are loaded lazily or at warm-up. Builds are coalesced per doc ID so
// concurrent callers trigger at most one build.
package index

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

var (
	// ErrNotPrepared is returned by Query when no index exists and none can be built.
	ErrNotPrepared = errors.New("document is not prepared for chat; run ingestion again")
	// ErrArtifactNotFound is returned by a DurableTier with no artifact for a doc ID.
	ErrArtifactNotFound = errors.New("index artifact not found")
	// errNoContent marks a document that is missing or has no pages.
	errNoContent = errors.New("no document content")
)

// Chunk is one embedded slice of the source text.
type Chunk struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// Index is the retrieval index of one document.
type Index struct {
	DocID   string    `json:"doc_id"`
	Source  string    `json:"source"`
	Model   string    `json:"model,omitempty"`
	BuiltAt time.Time `json:"built_at"`
	Chunks  []Chunk   `json:"chunks"`
}

// Hit is a chunk ranked against a query vector.
type Hit struct {
	Chunk
	Score float32
}

// Search returns the k chunks most similar to vec by cosine similarity.
func (ix *Index) Search(vec []float32, k int) []Hit {
	if ix == nil || k <= 0 || len(ix.Chunks) == 0 {
		return nil
	}
	hits := make([]Hit, 0, len(ix.Chunks))
	for _, c := range ix.Chunks {
		hits = append(hits, Hit{Chunk: c, Score: cosine(vec, c.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// SourceText renders a document's pages as the text the index is built from.
func SourceText(content crawler.DocumentContent) string {
	parts := make([]string, 0, len(content.Pages))
	for _, p := range content.Pages {
		parts = append(parts, "URL: "+p.URL+"\nContent:\n"+p.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
