package conversation

import (
	"github.com/smallbiznis/cobranca/internal/conversation/repository"
	"github.com/smallbiznis/cobranca/internal/conversation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversation",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
