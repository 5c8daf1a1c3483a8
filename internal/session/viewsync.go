package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opennewsroom/storyreel/internal/metrics"
	"github.com/opennewsroom/storyreel/internal/repositories/story"
	"github.com/opennewsroom/storyreel/pkg/logger"
	"github.com/panjf2000/ants/v2"
)

// ViewRecorder schedules a view-count sync for a story. Implementations
// must be safe for concurrent use from multiple sessions.
type ViewRecorder interface {
	Submit(id uuid.UUID, patch func(count int))
}

// ViewSyncer increments the authoritative counter and reads the result
// back on a bounded worker pool. The optimistic local +1 is deliberately
// avoided: the read-back keeps counts honest under concurrent viewers.
type ViewSyncer struct {
	logger  logger.Logger
	repo    story.Repository
	metrics *metrics.Metrics
	pool    *ants.Pool
	timeout time.Duration
}

func NewViewSyncer(workers int, repo story.Repository, log logger.Logger, m *metrics.Metrics) (*ViewSyncer, error) {
	if workers <= 0 {
		workers = 4
	}

	// Non-blocking: Submit is called with a session mutex held, and a
	// saturated pool must shed work instead of stalling playback.
	pool, err := ants.NewPool(workers, ants.WithPreAlloc(true), ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &ViewSyncer{
		logger:  log,
		repo:    repo,
		metrics: m,
		pool:    pool,
		timeout: 5 * time.Second,
	}, nil
}

// Submit runs increment-then-reread for the story and hands the
// authoritative count to patch. Failures are logged and swallowed: a
// broken counter must never block or close playback.
func (v *ViewSyncer) Submit(id uuid.UUID, patch func(count int)) {
	err := v.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
		defer cancel()

		if err := v.repo.IncrementViewCount(ctx, id); err != nil {
			v.logger.Warn("Failed to increment view count", "story_id", id, "error", err)
			v.metrics.ViewSyncFailures.Inc()
			return
		}
		v.metrics.ViewIncrements.Inc()

		count, err := v.repo.GetViewCount(ctx, id)
		if err != nil {
			v.logger.Warn("Failed to read back view count", "story_id", id, "error", err)
			v.metrics.ViewSyncFailures.Inc()
			return
		}

		if patch != nil {
			patch(count)
		}
	})
	if err != nil {
		v.logger.Warn("Failed to submit view sync job", "story_id", id, "error", err)
		v.metrics.ViewSyncFailures.Inc()
	}
}

func (v *ViewSyncer) Release() {
	v.pool.Release()
}

var _ ViewRecorder = (*ViewSyncer)(nil)
