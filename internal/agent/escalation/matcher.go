package escalation

import (
	"strings"

	"github.com/smallbiznis/cobranca/internal/agent/domain"
)

// PatternSet tags a keyword list with the escalation reason it triggers.
// Matching is lowercase substring, which is what the inbox actually needs:
// customers write "vou chamar meu advogado", not the bare keyword.
type PatternSet struct {
	Reason   domain.EscalationReason
	Keywords []string
}

// Matcher evaluates pattern sets in order; the first hit wins.
type Matcher struct {
	sets []PatternSet
}

func NewMatcher(sets ...PatternSet) *Matcher {
	return &Matcher{sets: sets}
}

// Match returns the matched reason and keyword, or ok=false.
func (m *Matcher) Match(text string) (domain.EscalationReason, string, bool) {
	if text == "" {
		return "", "", false
	}
	lower := strings.ToLower(text)
	for _, set := range m.sets {
		for _, kw := range set.Keywords {
			if strings.Contains(lower, kw) {
				return set.Reason, kw, true
			}
		}
	}
	return "", "", false
}

// DefaultMatcher carries the legal/authority set followed by the
// explicit-human-request set.
func DefaultMatcher() *Matcher {
	return NewMatcher(
		PatternSet{
			Reason: domain.ReasonLegalThreat,
			Keywords: []string{
				"procon",
				"advogado",
				"processo",
				"justiça",
				"justica",
				"reclame aqui",
				"reclameaqui",
				"denúncia",
				"denuncia",
				"tribunal",
				"juizado",
				"defensoria",
				"ministério público",
				"ministerio publico",
			},
		},
		PatternSet{
			Reason: domain.ReasonExplicitRequest,
			Keywords: []string{
				"atendente",
				"humano",
				"gerente",
				"supervisor",
				"pessoa real",
				"falar com alguém",
				"falar com alguem",
				"quero falar",
			},
		},
	)
}
