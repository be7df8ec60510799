package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Report tallies one scheduled dunning pass for a tenant.
type Report struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

type Service interface {
	// ProcessScheduledDunning walks the tenant's collectible charges and
	// fires any due dunning steps. Per-charge failures are tallied and
	// never abort the batch.
	ProcessScheduledDunning(ctx context.Context) (Report, error)
	// ProcessInboundMessage reacts to a customer message that was already
	// appended to the conversation. Missing entities are a no-op.
	ProcessInboundMessage(ctx context.Context, conversationID, messageID snowflake.ID) error
}
