package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/internal/infrastructure/cache"
	"intelgraph-lab/pkg/logger"
)

// ErrEmpty is returned by Dequeue when no job arrived within the poll window.
var ErrEmpty = errors.New("queue empty")

// AnalysisQueue is a Redis list backed work queue for asynchronous analysis
// runs. Producers LPUSH job payloads; workers BRPOP them.
type AnalysisQueue struct {
	cache  *cache.RedisCache
	logger *logger.Logger
}

// NewAnalysisQueue creates a new analysis queue
func NewAnalysisQueue(c *cache.RedisCache, log *logger.Logger) *AnalysisQueue {
	return &AnalysisQueue{
		cache:  c,
		logger: log.WithComponent("analysis-queue"),
	}
}

// Enqueue queues an analysis job for an investigation
func (q *AnalysisQueue) Enqueue(ctx context.Context, investigationID uuid.UUID) (*models.AnalysisJob, error) {
	job := &models.AnalysisJob{
		ID:              uuid.New(),
		InvestigationID: investigationID,
		EnqueuedAt:      time.Now().UTC(),
		Attempt:         1,
	}
	return job, q.push(ctx, job)
}

// Requeue puts a failed job back with an incremented attempt counter
func (q *AnalysisQueue) Requeue(ctx context.Context, job *models.AnalysisJob) error {
	job.Attempt++
	return q.push(ctx, job)
}

func (q *AnalysisQueue) push(ctx context.Context, job *models.AnalysisJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis job: %w", err)
	}
	if err := q.cache.LPush(ctx, cache.KeyAnalysisQueue, payload); err != nil {
		return fmt.Errorf("failed to enqueue analysis job: %w", err)
	}

	q.logger.Debug().
		Str("job_id", job.ID.String()).
		Str("investigation_id", job.InvestigationID.String()).
		Int("attempt", job.Attempt).
		Msg("analysis job queued")
	return nil
}

// Dequeue blocks up to timeout waiting for the next job. Returns ErrEmpty
// when the window elapses without work.
func (q *AnalysisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*models.AnalysisJob, error) {
	values, err := q.cache.BRPop(ctx, timeout, cache.KeyAnalysisQueue)
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue analysis job: %w", err)
	}
	// BRPOP returns [key, value].
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(values))
	}

	job := &models.AnalysisJob{}
	if err := json.Unmarshal([]byte(values[1]), job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis job: %w", err)
	}
	return job, nil
}

// Depth returns the number of queued jobs
func (q *AnalysisQueue) Depth(ctx context.Context) (int64, error) {
	return q.cache.LLen(ctx, cache.KeyAnalysisQueue)
}
