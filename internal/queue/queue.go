// Package queue defines the job queue between the API and the pipeline
// workers.
package queue

import (
	"context"
	"errors"

	"github.com/JakeFAU/site-ingestor/internal/pipeline"
)

var (
	// ErrFull is returned by Enqueue when no capacity is left.
	ErrFull = errors.New("queue full")
	// ErrClosed is returned once the queue has been closed.
	ErrClosed = errors.New("queue closed")
)

// Queue hands ingestion jobs to workers.
type Queue interface {
	// Enqueue adds a job without waiting for capacity.
	Enqueue(ctx context.Context, job pipeline.Job) error
	// Dequeue blocks until a job is available or ctx ends.
	Dequeue(ctx context.Context) (pipeline.Job, error)
}
