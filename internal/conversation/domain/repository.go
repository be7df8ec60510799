package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/channel"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, conversation *Conversation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Conversation, error)
	// FindOpenByCustomerChannel returns the most recent non-RESOLVIDA
	// thread for the pair, if any.
	FindOpenByCustomerChannel(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, ch channel.Channel) (*Conversation, error)
	// UpdateStatus is an atomic single-row transition guarded on the
	// current status.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status) (bool, error)
	TouchLastMessage(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error

	InsertMessage(ctx context.Context, db *gorm.DB, message *Message) error
	FindMessageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Message, error)
	ListRecentMessages(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, limit int) ([]*Message, error)
	// FindRecentOutbound looks for an outbound message with identical
	// content inside the de-dup window, to avoid double-logging one send.
	FindRecentOutbound(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, content string, since time.Time) (*Message, error)
	SetMessageExternalID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string) error
}

type Service interface {
	// FindOrCreate returns the open thread for (customer, channel),
	// creating it in ABERTA when none exists.
	FindOrCreate(ctx context.Context, customerID snowflake.ID, ch channel.Channel) (*Conversation, error)
	Get(ctx context.Context, id snowflake.ID) (*Conversation, error)
	AppendMessage(ctx context.Context, message *Message) error
	// Apply resolves the event through the shared transition table and
	// persists the change atomically. It returns the resulting status.
	Apply(ctx context.Context, conversationID snowflake.ID, event Event) (Status, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("not_found")
)
