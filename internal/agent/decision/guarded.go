package decision

import (
	"context"
	"time"

	"github.com/smallbiznis/cobranca/internal/agent/domain"
	"go.uber.org/zap"
)

const defaultCallTimeout = 20 * time.Second

// Guarded wraps a raw provider with the boundary rules: bounded call time,
// schema validation, and deterministic fallbacks. Every failure mode
// (error, timeout, invalid shape) resolves the same way, so a provider
// outage can never crash a batch or leak raw text to a customer.
type Guarded struct {
	next    domain.Provider
	log     *zap.Logger
	timeout time.Duration
}

func NewGuarded(next domain.Provider, log *zap.Logger) *Guarded {
	return &Guarded{
		next:    next,
		log:     log.Named("agent.decision"),
		timeout: defaultCallTimeout,
	}
}

func (g *Guarded) DecideCollection(ctx context.Context, c domain.CollectionContext) (domain.Decision, error) {
	if g.next == nil {
		return Fallback(c), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	decided, err := g.next.DecideCollection(callCtx, c)
	if err != nil {
		g.log.Warn("collection decision fell back", zap.Error(err))
		return Fallback(c), nil
	}
	if err := decided.Validate(); err != nil {
		g.log.Warn("collection decision failed validation",
			zap.String("action", string(decided.Action)),
			zap.Float64("confidence", decided.Confidence),
		)
		return Fallback(c), nil
	}
	return decided, nil
}

func (g *Guarded) DecideInbound(ctx context.Context, c domain.InboundContext) (domain.Decision, error) {
	if g.next == nil {
		return InboundFallback(), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	decided, err := g.next.DecideInbound(callCtx, c)
	if err != nil {
		g.log.Warn("inbound decision fell back", zap.Error(err))
		return InboundFallback(), nil
	}
	if err := decided.Validate(); err != nil {
		g.log.Warn("inbound decision failed validation",
			zap.String("action", string(decided.Action)),
			zap.Float64("confidence", decided.Confidence),
		)
		return InboundFallback(), nil
	}
	return decided, nil
}
