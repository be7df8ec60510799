package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/agent/domain"
	"github.com/smallbiznis/cobranca/internal/channel"
	chargedomain "github.com/smallbiznis/cobranca/internal/charge/domain"
	conversationdomain "github.com/smallbiznis/cobranca/internal/conversation/domain"
	customerdomain "github.com/smallbiznis/cobranca/internal/customer/domain"
	"go.uber.org/zap"
)

const (
	contextMessageLimit      = 10
	contextDecisionLimit     = 5
	contextNotificationLimit = 5
	contextChargeLimit       = 10
	contextTaskLimit         = 5
)

// buildCollectionContext assembles the provider's view of one charge: the
// customer, the charge itself, and the recent history. Lookup failures
// degrade to an emptier context instead of blocking the decision.
func (s *Service) buildCollectionContext(
	ctx context.Context,
	customer *customerdomain.Customer,
	charge *chargedomain.Charge,
	ch channel.Channel,
	daysOverdue int,
	conversation *conversationdomain.Conversation,
) domain.CollectionContext {
	out := domain.CollectionContext{
		Customer: contextCustomer(customer),
		Charge:   contextCharge(charge, daysOverdue),
		Channel:  ch,
	}

	if conversation != nil {
		out.RecentMessages = s.recentMessages(ctx, conversation.ID)
	}
	out.RecentDecisions = s.recentDecisions(ctx, customer.OrgID, customer.ID)
	out.RecentNotifications = s.recentNotifications(ctx, charge.ID)
	out.OpenTasks = s.openTasks(ctx, customer.OrgID, customer.ID)
	return out
}

func (s *Service) buildInboundContext(
	ctx context.Context,
	customer *customerdomain.Customer,
	conversation *conversationdomain.Conversation,
	inbound *conversationdomain.Message,
) domain.InboundContext {
	out := domain.InboundContext{
		Customer:       contextCustomer(customer),
		ConversationID: conversation.ID.String(),
		Channel:        conversation.Channel,
		InboundMessage: inbound.Content,
	}

	out.RecentMessages = s.recentMessages(ctx, conversation.ID)
	out.RecentDecisions = s.recentDecisions(ctx, customer.OrgID, customer.ID)
	out.OpenTasks = s.openTasks(ctx, customer.OrgID, customer.ID)

	charges, err := s.charges.ListOpenByCustomer(ctx, s.db, customer.OrgID, customer.ID, contextChargeLimit)
	if err != nil {
		s.log.Warn("open charges lookup failed for context", zap.Error(err))
	}
	for _, c := range charges {
		days := c.DaysPastDue(s.clock.Now(), time.UTC)
		out.OpenCharges = append(out.OpenCharges, contextCharge(c, days))
	}
	return out
}

func contextCustomer(c *customerdomain.Customer) domain.ContextCustomer {
	return domain.ContextCustomer{
		ID:    c.ID.String(),
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
	}
}

func contextCharge(c *chargedomain.Charge, daysOverdue int) domain.ContextCharge {
	return domain.ContextCharge{
		ID:          c.ID.String(),
		Description: c.Description,
		AmountCents: c.AmountCents,
		DueDate:     c.DueDate.Format("2006-01-02"),
		Status:      string(c.Status),
		DaysOverdue: daysOverdue,
	}
}

func (s *Service) recentMessages(ctx context.Context, conversationID snowflake.ID) []domain.ContextMessage {
	messages, err := s.conversationRepo.ListRecentMessages(ctx, s.db, conversationID, contextMessageLimit)
	if err != nil {
		s.log.Warn("message history lookup failed for context", zap.Error(err))
		return nil
	}
	out := make([]domain.ContextMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, domain.ContextMessage{
			Sender:    string(m.Sender),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

func (s *Service) recentDecisions(ctx context.Context, orgID, customerID snowflake.ID) []domain.ContextDecision {
	decisions, err := s.decisionLogs.ListRecentByCustomer(ctx, s.db, orgID, customerID, contextDecisionLimit)
	if err != nil {
		s.log.Warn("decision history lookup failed for context", zap.Error(err))
		return nil
	}
	out := make([]domain.ContextDecision, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, domain.ContextDecision{
			Action:    d.Action,
			Reasoning: d.Reasoning,
			CreatedAt: d.ExecutedAt.Format(time.RFC3339),
		})
	}
	return out
}

func (s *Service) recentNotifications(ctx context.Context, chargeID snowflake.ID) []domain.ContextNotification {
	logs, err := s.dunning.ListNotificationsByCharge(ctx, s.db, chargeID, contextNotificationLimit)
	if err != nil {
		s.log.Warn("notification history lookup failed for context", zap.Error(err))
		return nil
	}
	out := make([]domain.ContextNotification, 0, len(logs))
	for _, l := range logs {
		out = append(out, domain.ContextNotification{
			Channel:         string(l.Channel),
			Status:          l.Status,
			RenderedMessage: l.RenderedMessage,
		})
	}
	return out
}

func (s *Service) openTasks(ctx context.Context, orgID, customerID snowflake.ID) []domain.ContextTask {
	tasks, err := s.tasks.ListOpenByCustomer(ctx, s.db, orgID, customerID, contextTaskLimit)
	if err != nil {
		s.log.Warn("open tasks lookup failed for context", zap.Error(err))
		return nil
	}
	out := make([]domain.ContextTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, domain.ContextTask{
			Title:    t.Title,
			Status:   string(t.Status),
			Priority: string(t.Priority),
		})
	}
	return out
}
