package decision

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/cobranca/internal/agent/domain"
	"github.com/smallbiznis/cobranca/internal/channel"
)

const smsMaxLen = 160

// Fallback returns the deterministic template decision used when the
// provider is unreachable or returned garbage: terse for SMS, informal for
// WhatsApp, formal for email.
func Fallback(ctx domain.CollectionContext) domain.Decision {
	valor := FormatBRL(ctx.Charge.AmountCents)

	var message string
	switch ctx.Channel {
	case channel.SMS:
		message = truncate(fmt.Sprintf("%s, cobrança %s (%s) vencida. Entre em contato.",
			ctx.Customer.Name, ctx.Charge.Description, valor), smsMaxLen)
	case channel.WhatsApp:
		message = fmt.Sprintf("Olá %s! A cobrança %q no valor de %s está pendente. Podemos ajudar?",
			ctx.Customer.Name, ctx.Charge.Description, valor)
	default:
		message = fmt.Sprintf("Prezado(a) %s,\n\nInformamos que a cobrança %q no valor de %s encontra-se pendente.\n\nCaso já tenha efetuado o pagamento, por favor desconsidere esta mensagem.\n\nAtenciosamente,\nEquipe de Cobrança",
			ctx.Customer.Name, ctx.Charge.Description, valor)
	}

	return domain.Decision{
		Action:     domain.ActionSendCollection,
		Message:    message,
		Confidence: 0.7,
		Reasoning:  "Fallback: template padrão (IA indisponível)",
	}
}

// InboundFallback is the only safe answer when the provider fails on a
// customer message: hand off, never auto-reply.
func InboundFallback() domain.Decision {
	return domain.Decision{
		Action:           domain.ActionEscalateHuman,
		Message:          "",
		Confidence:       0,
		Reasoning:        "IA indisponível — escalando para humano",
		EscalationReason: domain.ReasonAIUncertainty,
	}
}

// FormatBRL renders cents as Brazilian currency (R$ 1.234,56).
func FormatBRL(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}

	reais := cents / 100
	resto := cents % 100

	digits := fmt.Sprintf("%d", reais)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	out := fmt.Sprintf("R$ %s,%02d", b.String(), resto)
	if negative {
		return "-" + out
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
