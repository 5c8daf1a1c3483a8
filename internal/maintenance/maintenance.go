package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/opennewsroom/storyreel/internal/repositories/story"
	"github.com/opennewsroom/storyreel/internal/session"
	"github.com/opennewsroom/storyreel/pkg/config"
	"github.com/opennewsroom/storyreel/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Logger    logger.Logger
	Config    *config.Config
	Manager   *session.Manager
	StoryRepo story.Repository
}

// Maintenance runs the background jobs: idle-session eviction and
// cleanup of long-deactivated stories.
type Maintenance struct {
	Logger    logger.Logger
	Config    *config.Config
	Manager   *session.Manager
	StoryRepo story.Repository
}

func New(opts Opts) *Maintenance {
	return &Maintenance{
		Logger:    opts.Logger,
		Config:    opts.Config,
		Manager:   opts.Manager,
		StoryRepo: opts.StoryRepo,
	}
}

// Schedule starts the job scheduler and shuts it down when ctx ends.
func (m *Maintenance) Schedule(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	sweepInterval := m.Config.Playback.SessionIdleTTL / 2
	if sweepInterval < time.Second {
		sweepInterval = time.Second
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if evicted := m.Manager.SweepIdle(m.Config.Playback.SessionIdleTTL); evicted > 0 {
				m.Logger.Info("Idle session sweep completed", "evicted", evicted)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(m.Config.Cleanup.Interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			taskCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()

			deleted, err := m.StoryRepo.CleanupInactive(taskCtx, m.Config.Cleanup.InactiveAfter)
			if err != nil {
				m.Logger.Error("Failed to cleanup inactive stories", "error", err)
				return
			}
			if deleted > 0 {
				m.Logger.Info("Cleaned up inactive stories", "deleted", deleted)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule story cleanup: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		m.Logger.Info("Stopping maintenance scheduler")
		if err := scheduler.Shutdown(); err != nil {
			m.Logger.Error("Failed to shut down scheduler", "error", err)
		}
	}()

	return nil
}
