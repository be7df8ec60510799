package task

import (
	"github.com/smallbiznis/cobranca/internal/task/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("task",
	fx.Provide(repository.Provide),
)
