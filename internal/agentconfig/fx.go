package agentconfig

import (
	"github.com/smallbiznis/cobranca/internal/agentconfig/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("agentconfig",
	fx.Provide(repository.Provide),
)
