package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/channel"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
	// StatusDeadLetter is terminal; recovery happens through the human
	// task it generates, never another automatic retry.
	StatusDeadLetter Status = "DEAD_LETTER"
)

// Priorities. Inbound replies outrank dunning; overdue dunning outranks
// upcoming reminders.
const (
	PriorityUpcoming = 0
	PriorityOverdue  = 1
	PriorityReply    = 2
)

const DefaultMaxAttempts = 3

// Item is one durable outbound message. AttemptCount only ever grows.
type Item struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	CustomerID     snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	ChargeID       *snowflake.ID   `json:"charge_id,omitempty"`
	ConversationID *snowflake.ID   `json:"conversation_id,omitempty"`
	Channel        channel.Channel `gorm:"not null" json:"channel"`
	Content        string          `gorm:"not null" json:"content"`
	Status         Status          `gorm:"not null;default:PENDING" json:"status"`
	Priority       int             `gorm:"not null;default:0" json:"priority"`
	ScheduledFor   time.Time       `gorm:"not null" json:"scheduled_for"`
	AttemptCount   int             `gorm:"not null;default:0" json:"attempt_count"`
	MaxAttempts    int             `gorm:"not null;default:3" json:"max_attempts"`
	LastAttemptAt  *time.Time      `json:"last_attempt_at,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	ProviderMsgID  string          `gorm:"column:provider_msg_id" json:"provider_msg_id,omitempty"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Item) TableName() string { return "message_queue_items" }

func (i Item) Terminal() bool {
	return i.Status == StatusSent || i.Status == StatusDeadLetter
}
