package feed

import (
	"context"

	"github.com/opennewsroom/storyreel/internal/domain"
	"github.com/opennewsroom/storyreel/internal/metrics"
	"github.com/opennewsroom/storyreel/internal/repositories/story"
	"github.com/opennewsroom/storyreel/pkg/logger"
	"github.com/opennewsroom/storyreel/pkg/retry"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Logger    logger.Logger
	StoryRepo story.Repository
	Metrics   *metrics.Metrics
}

// Feed loads the current set of active stories for the tile strip.
// Stories are a secondary feature: a failed load degrades to an empty
// feed instead of surfacing an error.
type Feed struct {
	Logger    logger.Logger
	StoryRepo story.Repository
	Metrics   *metrics.Metrics
}

func New(opts Opts) *Feed {
	return &Feed{
		Logger:    opts.Logger,
		StoryRepo: opts.StoryRepo,
		Metrics:   opts.Metrics,
	}
}

// Load fetches active stories newest-first. Items without a resolvable
// media URL are never offered for selection. The returned slice is a
// fresh snapshot the caller owns.
func (f *Feed) Load(ctx context.Context) []domain.StoryItem {
	var fetched []domain.StoryItem

	err := retry.DoWithDefaults(ctx, f.Logger, "feed.ListActive", func() error {
		items, err := f.StoryRepo.ListActive(ctx)
		if err != nil {
			return err
		}
		fetched = items
		return nil
	})
	if err != nil {
		f.Logger.Warn("Failed to load active stories, rendering empty feed", "error", err)
		f.Metrics.FeedLoadFailures.Inc()
		return nil
	}

	playable := make([]domain.StoryItem, 0, len(fetched))
	for _, item := range fetched {
		if !item.HasMedia() {
			f.Logger.Debug("Skipping story without media", "story_id", item.ID)
			continue
		}
		playable = append(playable, item)
	}

	return playable
}

var Module = fx.Options(
	fx.Provide(New),
)
