package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
	"github.com/JakeFAU/site-ingestor/internal/pipeline"
	"github.com/JakeFAU/site-ingestor/internal/queue/memory"
)

type recordingRunner struct {
	mu   sync.Mutex
	jobs []pipeline.Job
	done chan struct{}
}

func (r *recordingRunner) Run(_ context.Context, job pipeline.Job) pipeline.Result {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	r.done <- struct{}{}
	return pipeline.Result{Status: crawler.SessionStatusReady, Pages: 1}
}

func TestWorkerRunsQueuedJobs(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(4)
	runner := &recordingRunner{done: make(chan struct{}, 4)}
	w := New(1, q, runner, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	require.NoError(t, q.Enqueue(ctx, pipeline.Job{DocID: "a"}))
	require.NoError(t, q.Enqueue(ctx, pipeline.Job{DocID: "b"}))
	for i := 0; i < 2; i++ {
		select {
		case <-runner.done:
		case <-time.After(time.Second):
			t.Fatal("job was not processed")
		}
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []pipeline.Job{{DocID: "a"}, {DocID: "b"}}, runner.jobs)
}

func TestWorkerStopsOnClosedQueue(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	runner := &recordingRunner{done: make(chan struct{}, 1)}
	require.NoError(t, q.Enqueue(context.Background(), pipeline.Job{DocID: "last"}))
	q.Close()

	stopped := make(chan struct{})
	go func() {
		New(2, q, runner, nil).Run(context.Background())
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on closed queue")
	}
	assert.Len(t, runner.jobs, 1)
}
