package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/decisionlog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, log *domain.AgentDecisionLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO agent_decision_logs
		 (id, org_id, customer_id, charge_id, conversation_id, action, reasoning, confidence,
		  input_context, output_message, escalation_reason, executed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.OrgID,
		log.CustomerID,
		log.ChargeID,
		log.ConversationID,
		log.Action,
		log.Reasoning,
		log.Confidence,
		log.InputContext,
		log.OutputMessage,
		log.EscalationReason,
		log.ExecutedAt,
		log.CreatedAt,
	).Error
}

func (r *repo) ListRecentByCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, limit int) ([]*domain.AgentDecisionLog, error) {
	var logs []*domain.AgentDecisionLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, customer_id, charge_id, conversation_id, action, reasoning, confidence,
		        input_context, output_message, escalation_reason, executed_at, created_at
		 FROM agent_decision_logs
		 WHERE org_id = ? AND customer_id = ?
		 ORDER BY executed_at DESC
		 LIMIT ?`,
		orgID,
		customerID,
		limit,
	).Scan(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
