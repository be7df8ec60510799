package domain

// Status is the lifecycle state of a conversation thread.
type Status string

const (
	StatusAberta         Status = "ABERTA"
	StatusPendenteIA     Status = "PENDENTE_IA"
	StatusPendenteHumano Status = "PENDENTE_HUMANO"
	StatusResolvida      Status = "RESOLVIDA"
)

// Event is something that happened to a conversation. Both the dunning
// scheduler and the inbound processor resolve status changes through the
// same transition table.
type Event string

const (
	// EventAgentDisabled fires when an inbound message arrives while the
	// tenant's agent is switched off.
	EventAgentDisabled Event = "AGENT_DISABLED"
	// EventDecisionStarted fires when the agent picks up an inbound
	// message for deciding.
	EventDecisionStarted Event = "DECISION_STARTED"
	// EventEscalated fires on any escalation, decided or forced.
	EventEscalated Event = "ESCALATED"
	// EventAutoHandled fires when the agent handled the thread without a
	// human (reply enqueued or dunning message queued).
	EventAutoHandled Event = "AUTO_HANDLED"
	// EventHumanResolved fires when an operator closes the thread.
	EventHumanResolved Event = "HUMAN_RESOLVED"
)

// transitions maps (current status, event) to the next status. A missing
// entry means the event does not move the conversation; in particular
// RESOLVIDA is only ever left through an explicit human action in the UI,
// never automatically.
var transitions = map[Status]map[Event]Status{
	StatusAberta: {
		EventAgentDisabled:   StatusPendenteHumano,
		EventDecisionStarted: StatusPendenteIA,
		EventEscalated:       StatusPendenteHumano,
		EventAutoHandled:     StatusAberta,
		EventHumanResolved:   StatusResolvida,
	},
	StatusPendenteIA: {
		EventAgentDisabled: StatusPendenteHumano,
		EventEscalated:     StatusPendenteHumano,
		EventAutoHandled:   StatusAberta,
		EventHumanResolved: StatusResolvida,
	},
	StatusPendenteHumano: {
		EventEscalated:     StatusPendenteHumano,
		EventHumanResolved: StatusResolvida,
	},
	StatusResolvida: {},
}

// NextState resolves a status transition. Unknown combinations leave the
// status unchanged.
func NextState(current Status, event Event) Status {
	if next, ok := transitions[current][event]; ok {
		return next
	}
	return current
}
