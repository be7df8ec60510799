package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/cobranca/internal/channel"
)

type Action string

const (
	ActionSendCollection  Action = "SEND_COLLECTION"
	ActionRespondCustomer Action = "RESPOND_CUSTOMER"
	ActionEscalateHuman   Action = "ESCALATE_HUMAN"
	ActionNegotiate       Action = "NEGOTIATE"
	ActionSkip            Action = "SKIP"
	ActionMarkPromise     Action = "MARK_PROMISE"
	ActionUpdateStatus    Action = "UPDATE_STATUS"
)

func (a Action) Valid() bool {
	switch a {
	case ActionSendCollection, ActionRespondCustomer, ActionEscalateHuman,
		ActionNegotiate, ActionSkip, ActionMarkPromise, ActionUpdateStatus:
		return true
	}
	return false
}

type EscalationReason string

const (
	ReasonAIUncertainty   EscalationReason = "AI_UNCERTAINTY"
	ReasonHighValue       EscalationReason = "HIGH_VALUE"
	ReasonLegalThreat     EscalationReason = "LEGAL_THREAT"
	ReasonExplicitRequest EscalationReason = "EXPLICIT_REQUEST"
	ReasonRepeatedFailure EscalationReason = "REPEATED_FAILURE"
)

// Decision is the provider's verdict for one charge or inbound message.
type Decision struct {
	Action           Action           `json:"action"`
	Message          string           `json:"message"`
	Confidence       float64          `json:"confidence"`
	Reasoning        string           `json:"reasoning"`
	EscalationReason EscalationReason `json:"escalationReason,omitempty"`
}

// Validate is the schema check at the provider boundary. A decision that
// fails here is treated exactly like an unreachable provider; raw provider
// text never reaches a customer.
func (d Decision) Validate() error {
	if !d.Action.Valid() {
		return ErrInvalidDecision
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return ErrInvalidDecision
	}
	return nil
}

var (
	ErrInvalidDecision     = errors.New("invalid_decision")
	ErrProviderUnavailable = errors.New("provider_unavailable")
)

// Provider is the external decision-making capability. Implementations may
// be slow network calls; callers bound them with the context.
type Provider interface {
	DecideCollection(ctx context.Context, c CollectionContext) (Decision, error)
	DecideInbound(ctx context.Context, c InboundContext) (Decision, error)
}

// ContextCustomer is the customer identity slice shared by both call shapes.
type ContextCustomer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type ContextCharge struct {
	ID          string
	Description string
	AmountCents int64
	DueDate     string
	Status      string
	DaysOverdue int
}

type ContextMessage struct {
	Sender    string
	Content   string
	CreatedAt string
}

type ContextDecision struct {
	Action    string
	Reasoning string
	CreatedAt string
}

type ContextNotification struct {
	Channel         string
	Status          string
	RenderedMessage string
}

type ContextTask struct {
	Title    string
	Status   string
	Priority string
}

// CollectionContext feeds a proactive dunning decision.
type CollectionContext struct {
	Customer            ContextCustomer
	Charge              ContextCharge
	Channel             channel.Channel
	RecentMessages      []ContextMessage
	RecentDecisions     []ContextDecision
	RecentNotifications []ContextNotification
	OpenTasks           []ContextTask
}

// InboundContext feeds a reactive decision on a customer message.
type InboundContext struct {
	Customer        ContextCustomer
	ConversationID  string
	Channel         channel.Channel
	InboundMessage  string
	RecentMessages  []ContextMessage
	RecentDecisions []ContextDecision
	OpenCharges     []ContextCharge
	OpenTasks       []ContextTask
}
