package agent

import (
	"github.com/smallbiznis/cobranca/internal/agent/decision"
	"github.com/smallbiznis/cobranca/internal/agent/escalation"
	"github.com/smallbiznis/cobranca/internal/agent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("agent",
	decision.Module,
	escalation.Module,
	fx.Provide(service.New),
)
