package dispatch

import (
	"github.com/smallbiznis/cobranca/internal/channel"
	"github.com/smallbiznis/cobranca/internal/dispatch/domain"
	"github.com/smallbiznis/cobranca/internal/dispatch/sender"
	"github.com/smallbiznis/cobranca/internal/dispatch/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRegistry wires the development senders. Real provider integrations
// replace these per channel at deploy time.
func NewRegistry(log *zap.Logger) *domain.Registry {
	registry := domain.NewRegistry()
	registry.Register(channel.WhatsApp, sender.NewLogSender(log, string(channel.WhatsApp)))
	registry.Register(channel.SMS, sender.NewLogSender(log, string(channel.SMS)))
	registry.Register(channel.Email, sender.NewLogSender(log, string(channel.Email)))
	return registry
}

var Module = fx.Module("dispatch",
	fx.Provide(
		NewRegistry,
		service.New,
	),
)
