package story

import (
	"go.uber.org/fx"
)

var Module = fx.Module("story_repository",
	fx.Provide(
		NewPgxRepository,
		fx.Annotate(
			func(repo *PgxRepository) Repository {
				return repo
			},
			fx.As(new(Repository)),
		),
	),
)
