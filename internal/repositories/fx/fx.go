package fx

import (
	"github.com/opennewsroom/storyreel/internal/repositories/story"
	"go.uber.org/fx"
)

var Module = fx.Options(
	story.Module,
)
