package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/channel"
)

type MessageSender string

const (
	SenderCustomer MessageSender = "CUSTOMER"
	SenderAI       MessageSender = "AI"
	SenderAgent    MessageSender = "AGENT"
	SenderSystem   MessageSender = "SYSTEM"
)

// Conversation is the per (customer, channel) thread shared by the scheduled
// and inbound flows.
type Conversation struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	CustomerID    snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	Channel       channel.Channel `gorm:"not null" json:"channel"`
	Status        Status          `gorm:"not null;default:ABERTA" json:"status"`
	LastMessageAt time.Time       `json:"last_message_at"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Conversation) TableName() string { return "conversations" }

// Message is an immutable conversation entry. IsInternal hides audit notes
// from the customer-facing inbox.
type Message struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	ConversationID snowflake.ID    `gorm:"not null;index" json:"conversation_id"`
	Sender         MessageSender   `gorm:"not null" json:"sender"`
	Content        string          `gorm:"not null" json:"content"`
	ContentType    string          `gorm:"not null;default:text" json:"content_type"`
	Channel        channel.Channel `gorm:"not null" json:"channel"`
	IsInternal     bool            `gorm:"not null;default:false" json:"is_internal"`
	ExternalID     string          `json:"external_id,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Message) TableName() string { return "messages" }
