package escalation

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/smallbiznis/cobranca/internal/agent/domain"
	configdomain "github.com/smallbiznis/cobranca/internal/agentconfig/domain"
	queuedomain "github.com/smallbiznis/cobranca/internal/messagequeue/domain"
	"gorm.io/gorm"
)

// Check is the outcome of a safety-net evaluation.
type Check struct {
	Escalate bool
	Reason   agentdomain.EscalationReason
	Details  string
}

const ConsecutiveFailureThreshold = 3

// ShouldForceEscalate runs the policy rules in fixed priority over an
// already-made decision. It can only add escalation, never remove one:
// callers that already hold an escalating decision still escalate even when
// every rule here passes.
func ShouldForceEscalate(
	matcher *Matcher,
	decision agentdomain.Decision,
	inboundText string,
	cfg configdomain.AgentConfig,
	chargeAmountCents int64,
) Check {
	// 1. Low confidence.
	if decision.Confidence < cfg.EscalationThreshold {
		return Check{
			Escalate: true,
			Reason:   agentdomain.ReasonAIUncertainty,
			Details: fmt.Sprintf("Confiança %.0f%% abaixo do limiar %.0f%%",
				decision.Confidence*100, cfg.EscalationThreshold*100),
		}
	}

	// 2. High value.
	if chargeAmountCents > 0 && chargeAmountCents > cfg.HighValueThresholdCents {
		return Check{
			Escalate: true,
			Reason:   agentdomain.ReasonHighValue,
			Details: fmt.Sprintf("Valor da cobrança (%d) acima do limiar (%d)",
				chargeAmountCents, cfg.HighValueThresholdCents),
		}
	}

	// 3 and 4. Keyword sets, legal threats first.
	if reason, kw, ok := matcher.Match(inboundText); ok {
		switch reason {
		case agentdomain.ReasonLegalThreat:
			return Check{
				Escalate: true,
				Reason:   reason,
				Details:  fmt.Sprintf("Palavra-chave detectada: %q", kw),
			}
		case agentdomain.ReasonExplicitRequest:
			return Check{
				Escalate: true,
				Reason:   reason,
				Details:  fmt.Sprintf("Pedido explícito detectado: %q", kw),
			}
		}
	}

	return Check{}
}

// CheckConsecutiveFailures escalates only when at least threshold recent
// queue items exist and every one of them failed for good.
func CheckConsecutiveFailures(
	ctx context.Context,
	db *gorm.DB,
	queueRepo queuedomain.Repository,
	customerID snowflake.ID,
	threshold int,
) (Check, error) {
	if threshold <= 0 {
		threshold = ConsecutiveFailureThreshold
	}

	recent, err := queueRepo.RecentByCustomer(ctx, db, customerID, threshold)
	if err != nil {
		return Check{}, err
	}
	if len(recent) < threshold {
		return Check{}, nil
	}

	for _, item := range recent {
		if item.Status != queuedomain.StatusFailed && item.Status != queuedomain.StatusDeadLetter {
			return Check{}, nil
		}
	}

	return Check{
		Escalate: true,
		Reason:   agentdomain.ReasonRepeatedFailure,
		Details:  fmt.Sprintf("%d falhas consecutivas de entrega", threshold),
	}, nil
}
