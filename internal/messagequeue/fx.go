package messagequeue

import (
	"github.com/smallbiznis/cobranca/internal/messagequeue/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("messagequeue",
	fx.Provide(repository.Provide),
)
