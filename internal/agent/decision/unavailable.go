package decision

import (
	"context"

	"github.com/smallbiznis/cobranca/internal/agent/domain"
)

// Unavailable is the provider for deployments without an AI backend. Every
// call reports unavailability, which Guarded resolves to the deterministic
// fallbacks.
type Unavailable struct{}

func (Unavailable) DecideCollection(ctx context.Context, c domain.CollectionContext) (domain.Decision, error) {
	return domain.Decision{}, domain.ErrProviderUnavailable
}

func (Unavailable) DecideInbound(ctx context.Context, c domain.InboundContext) (domain.Decision, error) {
	return domain.Decision{}, domain.ErrProviderUnavailable
}
