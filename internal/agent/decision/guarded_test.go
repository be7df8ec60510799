package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/cobranca/internal/agent/domain"
	"github.com/smallbiznis/cobranca/internal/channel"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type scriptedProvider struct {
	collection domain.Decision
	inbound    domain.Decision
	err        error
}

func (p *scriptedProvider) DecideCollection(ctx context.Context, c domain.CollectionContext) (domain.Decision, error) {
	return p.collection, p.err
}

func (p *scriptedProvider) DecideInbound(ctx context.Context, c domain.InboundContext) (domain.Decision, error) {
	return p.inbound, p.err
}

func TestGuarded_NilProviderUsesFallback(t *testing.T) {
	g := NewGuarded(nil, zap.NewNop())

	d, err := g.DecideCollection(context.Background(), collectionContext(channel.Email))
	assert.NoError(t, err)
	assert.Equal(t, domain.ActionSendCollection, d.Action)

	inbound, err := g.DecideInbound(context.Background(), domain.InboundContext{})
	assert.NoError(t, err)
	assert.Equal(t, domain.ActionEscalateHuman, inbound.Action)
}

func TestGuarded_ProviderErrorFallsBack(t *testing.T) {
	g := NewGuarded(&scriptedProvider{err: errors.New("boom")}, zap.NewNop())

	d, err := g.DecideCollection(context.Background(), collectionContext(channel.SMS))
	assert.NoError(t, err)
	assert.Equal(t, domain.ActionSendCollection, d.Action)
	assert.Contains(t, d.Reasoning, "Fallback")
}

func TestGuarded_InvalidDecisionFallsBack(t *testing.T) {
	provider := &scriptedProvider{
		collection: domain.Decision{Action: "MAKE_COFFEE", Confidence: 0.9},
	}
	g := NewGuarded(provider, zap.NewNop())

	d, err := g.DecideCollection(context.Background(), collectionContext(channel.WhatsApp))
	assert.NoError(t, err)
	assert.Equal(t, domain.ActionSendCollection, d.Action)
}

func TestGuarded_OutOfRangeConfidenceFallsBack(t *testing.T) {
	provider := &scriptedProvider{
		collection: domain.Decision{Action: domain.ActionSendCollection, Confidence: 1.4, Message: "oi"},
	}
	g := NewGuarded(provider, zap.NewNop())

	d, err := g.DecideCollection(context.Background(), collectionContext(channel.WhatsApp))
	assert.NoError(t, err)
	assert.InDelta(t, 0.7, d.Confidence, 0.0001)
}

func TestGuarded_ValidDecisionPassesThrough(t *testing.T) {
	provider := &scriptedProvider{
		collection: domain.Decision{
			Action:     domain.ActionNegotiate,
			Message:    "Podemos parcelar em 3x.",
			Confidence: 0.92,
			Reasoning:  "cliente pediu prazo",
		},
	}
	g := NewGuarded(provider, zap.NewNop())

	d, err := g.DecideCollection(context.Background(), collectionContext(channel.WhatsApp))
	assert.NoError(t, err)
	assert.Equal(t, domain.ActionNegotiate, d.Action)
	assert.Equal(t, "Podemos parcelar em 3x.", d.Message)
}

func TestGuarded_InboundFailureNeverAutoReplies(t *testing.T) {
	cases := []*scriptedProvider{
		{err: errors.New("timeout")},
		{inbound: domain.Decision{Action: "NOT_AN_ACTION", Message: "raw model text"}},
		{inbound: domain.Decision{Action: domain.ActionRespondCustomer, Confidence: -2, Message: "raw model text"}},
	}

	for _, provider := range cases {
		g := NewGuarded(provider, zap.NewNop())
		d, err := g.DecideInbound(context.Background(), domain.InboundContext{InboundMessage: "oi"})
		assert.NoError(t, err)
		assert.Equal(t, domain.ActionEscalateHuman, d.Action)
		assert.Empty(t, d.Message)
	}
}
