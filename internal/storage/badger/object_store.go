// Package badger implements an embedded object store on BadgerDB.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/storage"
)

// Config controls where the database lives.
type Config struct {
	Dir      string
	InMemory bool
}

// ObjectStore keeps objects as key/value pairs keyed by path.
type ObjectStore struct {
	db *badger.DB
}

var _ storage.ObjectStore = (*ObjectStore)(nil)

// zapAdapter adapts zap to the badger.Logger interface.
type zapAdapter struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(msg string, items ...any)   { a.logger.Errorf(msg, items...) }
func (a *zapAdapter) Warningf(msg string, items ...any) { a.logger.Warnf(msg, items...) }
func (a *zapAdapter) Infof(msg string, items ...any)    { a.logger.Debugf(msg, items...) }
func (a *zapAdapter) Debugf(msg string, items ...any)   { a.logger.Debugf(msg, items...) }

// Open opens (creating if needed) a BadgerDB-backed object store.
func Open(cfg Config, logger *zap.Logger) (*ObjectStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("badger directory is required")
		}
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts.Logger = &zapAdapter{logger: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &ObjectStore{db: db}, nil
}

// Close closes the database.
func (s *ObjectStore) Close() error {
	return s.db.Close()
}

// PutObject stores data under path and returns a badger:// URI.
func (s *ObjectStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	value, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), value)
	})
	if err != nil {
		return "", fmt.Errorf("badger put %s: %w", path, err)
	}
	return "badger://" + path, nil
}

// GetObject returns the value stored under path.
func (s *ObjectStore) GetObject(_ context.Context, path string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", path, err)
	}
	return value, nil
}

// ListObjects returns the keys with the given prefix in key order.
func (s *ObjectStore) ListObjects(_ context.Context, prefix string) ([]string, error) {
	var paths []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			if bytes.HasPrefix(key, opts.Prefix) {
				paths = append(paths, string(key))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list %q: %w", prefix, err)
	}
	return paths, nil
}
