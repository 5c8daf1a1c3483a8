package story

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opennewsroom/storyreel/internal/domain"
	"github.com/opennewsroom/storyreel/internal/repositories"
	"github.com/opennewsroom/storyreel/pkg/logger"
)

var storyColumns = []string{
	"id",
	"title",
	"image_url",
	"video_url",
	"author_name",
	"author_avatar_url",
	"badge_label",
	"view_count",
	"is_active",
	"created_at",
}

type PgxRepository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewPgxRepository(pool *pgxpool.Pool, logger logger.Logger) *PgxRepository {
	return &PgxRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *PgxRepository) ListActive(ctx context.Context) ([]domain.StoryItem, error) {
	query, args, err := repositories.SqBuilder.
		Select(storyColumns...).
		From("stories").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list active stories query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active stories: %w", err)
	}
	defer rows.Close()

	var items []domain.StoryItem
	for rows.Next() {
		item, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story rows: %w", err)
	}

	return items, nil
}

func (r *PgxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StoryItem, error) {
	query, args, err := repositories.SqBuilder.
		Select(storyColumns...).
		From("stories").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get story query: %w", err)
	}

	item, err := scanStory(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story by id: %w", err)
	}

	return &item, nil
}

func (r *PgxRepository) Create(ctx context.Context, item domain.StoryItem) (uuid.UUID, error) {
	query, args, err := repositories.SqBuilder.
		Insert("stories").
		Columns("title", "image_url", "video_url", "author_name", "author_avatar_url", "badge_label", "is_active", "created_at").
		Values(item.Title, item.ImageURL, item.VideoURL, item.AuthorName, item.AuthorAvatarURL, item.BadgeLabel, true, time.Now()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build create story query: %w", err)
	}

	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrCannotCreate, err)
	}

	return id, nil
}

func (r *PgxRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query, args, err := repositories.SqBuilder.
		Update("stories").
		Set("is_active", false).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build deactivate story query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to deactivate story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// IncrementViewCount is a single server-side increment so concurrent
// viewers never lose updates.
func (r *PgxRepository) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	query, args, err := repositories.SqBuilder.
		Update("stories").
		Set("view_count", squirrel.Expr("view_count + 1")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build increment view count query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PgxRepository) GetViewCount(ctx context.Context, id uuid.UUID) (int, error) {
	query, args, err := repositories.SqBuilder.
		Select("view_count").
		From("stories").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build get view count query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get view count: %w", err)
	}

	return count, nil
}

func (r *PgxRepository) CleanupInactive(ctx context.Context, olderThan time.Duration) (int64, error) {
	query, args, err := repositories.SqBuilder.
		Delete("stories").
		Where(squirrel.Eq{"is_active": false}).
		Where(squirrel.Lt{"created_at": time.Now().Add(-olderThan)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build cleanup query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup inactive stories: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanStory(row pgx.Row) (domain.StoryItem, error) {
	var item domain.StoryItem
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.ImageURL,
		&item.VideoURL,
		&item.AuthorName,
		&item.AuthorAvatarURL,
		&item.BadgeLabel,
		&item.ViewCount,
		&item.IsActive,
		&item.CreatedAt,
	)
	return item, err
}

var _ Repository = (*PgxRepository)(nil)
