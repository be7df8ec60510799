package escalation

import "go.uber.org/fx"

var Module = fx.Module("agent.escalation",
	fx.Provide(
		DefaultMatcher,
		NewExecutor,
	),
)
