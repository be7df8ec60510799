package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AgentDecisionLog is the append-only audit trail: one row per decision the
// agent made, including SKIPs and decisions later overridden by the safety
// net. Rows are never mutated or deleted.
type AgentDecisionLog struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID      `gorm:"not null;index" json:"organization_id"`
	CustomerID       snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	ChargeID         *snowflake.ID     `json:"charge_id,omitempty"`
	ConversationID   *snowflake.ID     `json:"conversation_id,omitempty"`
	Action           string            `gorm:"not null" json:"action"`
	Reasoning        string            `json:"reasoning"`
	Confidence       float64           `gorm:"not null" json:"confidence"`
	InputContext     datatypes.JSONMap `gorm:"type:jsonb" json:"input_context,omitempty"`
	OutputMessage    string            `json:"output_message"`
	EscalationReason string            `json:"escalation_reason,omitempty"`
	ExecutedAt       time.Time         `gorm:"not null" json:"executed_at"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (AgentDecisionLog) TableName() string { return "agent_decision_logs" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, log *AgentDecisionLog) error
	ListRecentByCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, limit int) ([]*AgentDecisionLog, error)
}
