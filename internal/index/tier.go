package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/site-ingestor/internal/storage"
)

// DurableTier persists index artifacts across restarts.
type DurableTier interface {
	Load(ctx context.Context, docID string) (*Index, error)
	Save(ctx context.Context, ix *Index) error
	List(ctx context.Context) ([]string, error)
}

const artifactExt = ".json"

// ObjectTier stores one JSON artifact per doc ID in an object store.
type ObjectTier struct {
	store  storage.ObjectStore
	prefix string
}

var _ DurableTier = (*ObjectTier)(nil)

// NewObjectTier stores artifacts as <prefix><docID>.json in store.
func NewObjectTier(store storage.ObjectStore, prefix string) *ObjectTier {
	return &ObjectTier{store: store, prefix: prefix}
}

func (t *ObjectTier) path(docID string) string {
	return t.prefix + docID + artifactExt
}

// Load reads and decodes the artifact for docID.
func (t *ObjectTier) Load(ctx context.Context, docID string) (*Index, error) {
	data, err := t.store.GetObject(ctx, t.path(docID))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("read index artifact: %w", err)
	}
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("decode index artifact %s: %w", docID, err)
	}
	if ix.DocID != docID {
		return nil, fmt.Errorf("index artifact %s holds doc %q", docID, ix.DocID)
	}
	return &ix, nil
}

// Save encodes and writes the artifact for ix.DocID.
func (t *ObjectTier) Save(ctx context.Context, ix *Index) error {
	data, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("encode index artifact: %w", err)
	}
	if _, err := t.store.PutObject(ctx, t.path(ix.DocID), "application/json", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write index artifact: %w", err)
	}
	return nil
}

// List returns the doc IDs that have an artifact.
func (t *ObjectTier) List(ctx context.Context) ([]string, error) {
	paths, err := t.store.ListObjects(ctx, t.prefix)
	if err != nil {
		return nil, fmt.Errorf("list index artifacts: %w", err)
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		rest := strings.TrimPrefix(p, t.prefix)
		if !strings.HasSuffix(rest, artifactExt) || strings.Contains(rest, "/") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(rest, artifactExt))
	}
	return ids, nil
}
