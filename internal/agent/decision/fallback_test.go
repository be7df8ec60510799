package decision

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/smallbiznis/cobranca/internal/agent/domain"
	"github.com/smallbiznis/cobranca/internal/channel"
	"github.com/stretchr/testify/assert"
)

func collectionContext(ch channel.Channel) domain.CollectionContext {
	return domain.CollectionContext{
		Customer: domain.ContextCustomer{
			ID:   "1",
			Name: "Maria Aparecida dos Santos Oliveira",
		},
		Charge: domain.ContextCharge{
			ID:          "2",
			Description: "Mensalidade plano premium com serviços adicionais de consultoria",
			AmountCents: 123456,
			DueDate:     "2026-09-10",
			Status:      "OVERDUE",
			DaysOverdue: 3,
		},
		Channel: ch,
	}
}

func TestFallback_SMSFitsInOneSegmentAndNamesCustomer(t *testing.T) {
	d := Fallback(collectionContext(channel.SMS))

	assert.Equal(t, domain.ActionSendCollection, d.Action)
	assert.InDelta(t, 0.7, d.Confidence, 0.0001)
	assert.LessOrEqual(t, utf8.RuneCountInString(d.Message), 160)
	assert.True(t, strings.HasPrefix(d.Message, "Maria"))
}

func TestFallback_WhatsAppMentionsChargeAndAmount(t *testing.T) {
	d := Fallback(collectionContext(channel.WhatsApp))

	assert.Equal(t, domain.ActionSendCollection, d.Action)
	assert.Contains(t, d.Message, "Olá Maria")
	assert.Contains(t, d.Message, "R$ 1.234,56")
}

func TestFallback_EmailIsFormal(t *testing.T) {
	d := Fallback(collectionContext(channel.Email))

	assert.Contains(t, d.Message, "Prezado(a)")
	assert.Contains(t, d.Message, "Atenciosamente")
	assert.Contains(t, d.Message, "R$ 1.234,56")
}

func TestInboundFallback_AlwaysEscalates(t *testing.T) {
	d := InboundFallback()

	assert.Equal(t, domain.ActionEscalateHuman, d.Action)
	assert.Empty(t, d.Message)
	assert.Zero(t, d.Confidence)
	assert.Equal(t, domain.ReasonAIUncertainty, d.EscalationReason)
}

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "R$ 0,00"},
		{1, "R$ 0,01"},
		{100, "R$ 1,00"},
		{123456, "R$ 1.234,56"},
		{100000000, "R$ 1.000.000,00"},
		{-9950, "-R$ 99,50"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBRL(tt.cents))
	}
}
