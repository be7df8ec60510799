package escalation

import (
	"testing"

	"github.com/smallbiznis/cobranca/internal/agent/domain"
	"github.com/stretchr/testify/assert"
)

func TestMatcher_Match(t *testing.T) {
	m := DefaultMatcher()

	tests := []struct {
		name       string
		text       string
		wantReason domain.EscalationReason
		wantOK     bool
	}{
		{"legal keyword inside sentence", "vou chamar meu ADVOGADO se continuar", domain.ReasonLegalThreat, true},
		{"procon", "vou no procon amanhã", domain.ReasonLegalThreat, true},
		{"accented justiça", "vou buscar a justiça", domain.ReasonLegalThreat, true},
		{"unaccented justica", "vou na justica", domain.ReasonLegalThreat, true},
		{"reclame aqui with space", "vou postar no Reclame Aqui", domain.ReasonLegalThreat, true},
		{"explicit human request", "quero falar com um atendente", domain.ReasonExplicitRequest, true},
		{"pessoa real", "tem alguma pessoa real aí?", domain.ReasonExplicitRequest, true},
		{"legal wins over explicit", "quero falar com meu advogado", domain.ReasonLegalThreat, true},
		{"plain message", "vou pagar amanhã, obrigado", "", false},
		{"empty text", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, kw, ok := m.Match(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, reason)
			if ok {
				assert.NotEmpty(t, kw)
			}
		})
	}
}

func TestMatcher_CustomSets(t *testing.T) {
	m := NewMatcher(PatternSet{
		Reason:   domain.ReasonExplicitRequest,
		Keywords: []string{"ombudsman"},
	})

	reason, kw, ok := m.Match("please forward this to the ombudsman")
	assert.True(t, ok)
	assert.Equal(t, domain.ReasonExplicitRequest, reason)
	assert.Equal(t, "ombudsman", kw)

	_, _, ok = m.Match("vou chamar meu advogado")
	assert.False(t, ok)
}
