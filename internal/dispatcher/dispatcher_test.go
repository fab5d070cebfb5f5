// Package dispatcher contains tests for worker coordination.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
	"github.com/JakeFAU/site-ingestor/internal/pipeline"
	"github.com/JakeFAU/site-ingestor/internal/queue"
	"github.com/JakeFAU/site-ingestor/internal/queue/memory"
)

// gateRunner blocks every run until release is closed.
type gateRunner struct {
	started chan string
	release chan struct{}
}

func (r *gateRunner) Run(_ context.Context, job pipeline.Job) pipeline.Result {
	r.started <- job.DocID
	<-r.release
	return pipeline.Result{Status: crawler.SessionStatusReady}
}

// TestEnqueueReturnsBeforeRunFinishes ensures callers never wait on a run and
// distinct documents run concurrently.
func TestEnqueueReturnsBeforeRunFinishes(t *testing.T) {
	t.Parallel()

	runner := &gateRunner{started: make(chan string, 2), release: make(chan struct{})}
	q := memory.NewQueue(4)
	dispatch := New(q, runner, 2, zap.NewNop())
	if dispatch.Workers() != 2 {
		t.Fatalf("expected 2 workers, got %d", dispatch.Workers())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	for _, id := range []string{"doc-a", "doc-b"} {
		if err := dispatch.Enqueue(context.Background(), pipeline.Job{DocID: id}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-runner.started:
			seen[id] = true
		case <-time.After(time.Second):
			t.Fatal("runs did not start concurrently")
		}
	}
	if !seen["doc-a"] || !seen["doc-b"] {
		t.Fatalf("unexpected runs: %v", seen)
	}

	close(runner.release)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	dispatch := New(&errorQueue{err: errors.New("boom")}, nil, 1, nil)

	err := dispatch.Enqueue(context.Background(), pipeline.Job{DocID: "doc"})
	if err == nil || err.Error() != "queue enqueue: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestDispatcherEnqueueFull(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	dispatch := New(q, nil, 1, nil)
	if err := dispatch.Enqueue(context.Background(), pipeline.Job{DocID: "a"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := dispatch.Enqueue(context.Background(), pipeline.Job{DocID: "b"}); !errors.Is(err, queue.ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

type errorQueue struct {
	mu  sync.Mutex
	err error
}

func (q *errorQueue) Enqueue(context.Context, pipeline.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *errorQueue) Dequeue(ctx context.Context) (pipeline.Job, error) {
	<-ctx.Done()
	return pipeline.Job{}, ctx.Err()
}
