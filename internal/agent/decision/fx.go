package decision

import (
	"github.com/smallbiznis/cobranca/internal/agent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log *zap.Logger
	// Raw is the concrete AI backend, when one is deployed. Without it
	// every decision resolves to the deterministic fallback.
	Raw domain.Provider `name:"raw" optional:"true"`
}

func ProvideGuarded(p Params) domain.Provider {
	return NewGuarded(p.Raw, p.Log)
}

var Module = fx.Module("agent.decision",
	fx.Provide(ProvideGuarded),
)
