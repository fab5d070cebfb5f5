package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockObjectStore is a mock implementation of ObjectStore for testing.
type MockObjectStore struct {
	mock.Mock
}

// PutObject is the mock implementation of the PutObject method.
func (m *MockObjectStore) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1)
}

// GetObject is the mock implementation of the GetObject method.
func (m *MockObjectStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// ListObjects is the mock implementation of the ListObjects method.
func (m *MockObjectStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	paths, _ := args.Get(0).([]string)
	return paths, args.Error(1)
}
