package app

import (
	"context"
	"database/sql"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/opennewsroom/storyreel/internal/feed"
	"github.com/opennewsroom/storyreel/internal/httpserver"
	"github.com/opennewsroom/storyreel/internal/maintenance"
	"github.com/opennewsroom/storyreel/internal/metrics"
	_ "github.com/opennewsroom/storyreel/internal/migrations"
	"github.com/opennewsroom/storyreel/internal/pgx"
	repositories "github.com/opennewsroom/storyreel/internal/repositories/fx"
	"github.com/opennewsroom/storyreel/internal/session"
	"github.com/opennewsroom/storyreel/pkg/config"
	"github.com/opennewsroom/storyreel/pkg/logger"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
		metrics.New,
		func() clockwork.Clock { return clockwork.NewRealClock() },
	),
	repositories.Module,
	feed.Module,
	fx.Provide(
		session.NewManager,
		maintenance.New,
		httpserver.New,
	),
	fx.Invoke(migrate),
	fx.Invoke(run),
)

// migrate applies the registered Go migrations before anything touches
// the stories table.
func migrate(c *config.Config, log logger.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := sql.Open("postgres", c.GetDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.Up(db, "."); err != nil {
		return err
	}

	log.Info("Database migrations applied")
	return nil
}

func run(lc fx.Lifecycle, log logger.Logger, maint *maintenance.Maintenance, _ *httpserver.Server) {
	jobCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := maint.Schedule(jobCtx); err != nil {
				log.Error("Failed to schedule maintenance jobs", "error", err)
				cancel()
				return err
			}
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
