package worker

import (
	"context"
	"errors"
	"sync"

	"intelgraph-lab/internal/config"
	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/internal/infrastructure/queue"
	"intelgraph-lab/pkg/logger"
)

// Worker consumes analysis jobs from the queue and runs them. Multiple
// workers may consume the same queue; the Runner's per-investigation lock
// keeps concurrent runs from stepping on each other.
type Worker struct {
	queue  *queue.AnalysisQueue
	runner *Runner
	config config.WorkerConfig
	logger *logger.Logger
}

// NewWorker creates a Worker
func NewWorker(q *queue.AnalysisQueue, runner *Runner, cfg config.WorkerConfig, log *logger.Logger) *Worker {
	return &Worker{
		queue:  q,
		runner: runner,
		config: cfg,
		logger: log.WithComponent("worker"),
	}
}

// Start runs the consume loop until the context is cancelled. It blocks.
func (w *Worker) Start(ctx context.Context) {
	concurrency := w.config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	w.logger.Info().
		Int("concurrency", concurrency).
		Dur("poll_interval", w.config.PollInterval).
		Msg("worker started")

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()

	w.logger.Info().Msg("worker stopped")
}

func (w *Worker) consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.queue.Dequeue(ctx, w.config.PollInterval)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Error().Err(err).Msg("failed to dequeue job")
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *models.AnalysisJob) {
	log := w.logger.WithFields(map[string]any{
		"job_id":           job.ID.String(),
		"investigation_id": job.InvestigationID.String(),
		"attempt":          job.Attempt,
	})

	log.Info().Msg("processing analysis job")

	runCtx := ctx
	if w.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.config.RunTimeout)
		defer cancel()
	}

	_, err := w.runner.Run(runCtx, job.InvestigationID)
	if err == nil {
		return
	}

	if errors.Is(err, ErrAlreadyRunning) {
		log.Info().Msg("analysis already in flight, dropping job")
		return
	}

	if job.Attempt >= w.config.MaxAttempts {
		log.Error().Err(err).Msg("analysis job exhausted attempts")
		return
	}

	if reqErr := w.queue.Requeue(context.WithoutCancel(ctx), job); reqErr != nil {
		log.Error().Err(reqErr).Msg("failed to requeue job")
		return
	}
	log.Warn().Err(err).Msg("analysis job failed, requeued")
}
