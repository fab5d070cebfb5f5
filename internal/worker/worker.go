// Package worker runs ingestion jobs taken from the queue.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/metrics"
	"github.com/JakeFAU/site-ingestor/internal/pipeline"
	"github.com/JakeFAU/site-ingestor/internal/queue"
)

// Runner executes one ingestion job.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) pipeline.Result
}

// Worker consumes queue items and executes the pipeline.
type Worker struct {
	id     int
	queue  queue.Queue
	runner Runner
	logger *zap.Logger
}

// New constructs a Worker.
func New(id int, q queue.Queue, runner Runner, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:     id,
		queue:  q,
		runner: runner,
		logger: logger.Named("worker").With(zap.Int("worker_id", id)),
	}
}

// Run blocks, consuming queue items until the context finishes or the
// queue is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("doc_id", job.DocID), zap.String("session_id", job.SessionID))
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job pipeline.Job) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	res := w.runner.Run(ctx, job)
	w.logger.Info("job finished",
		zap.String("doc_id", job.DocID),
		zap.String("session_id", job.SessionID),
		zap.String("status", string(res.Status)),
		zap.String("strategy", string(res.Strategy)),
		zap.Int("pages", res.Pages),
	)
}
