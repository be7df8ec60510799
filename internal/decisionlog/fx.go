package decisionlog

import (
	"github.com/smallbiznis/cobranca/internal/decisionlog/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("decisionlog",
	fx.Provide(repository.Provide),
)
