package story

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opennewsroom/storyreel/internal/domain"
)

var ErrNotFound = errors.New("story not found")
var ErrCannotCreate = errors.New("error create story")

//go:generate go run go.uber.org/mock/mockgen -source=story.go -destination=mocks/mock.go

// Repository is the story contract: the viewer reads active items and
// bumps view counts; the CMS side owns creation and deactivation.
type Repository interface {
	ListActive(ctx context.Context) ([]domain.StoryItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StoryItem, error)
	Create(ctx context.Context, item domain.StoryItem) (uuid.UUID, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	IncrementViewCount(ctx context.Context, id uuid.UUID) error
	GetViewCount(ctx context.Context, id uuid.UUID) (int, error)
	CleanupInactive(ctx context.Context, olderThan time.Duration) (int64, error)
}
