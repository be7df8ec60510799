package dunning

import (
	"github.com/smallbiznis/cobranca/internal/dunning/repository"
	"github.com/smallbiznis/cobranca/internal/dunning/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dunning",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
