package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/channel"
	"github.com/smallbiznis/cobranca/internal/conversation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, conversation *domain.Conversation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO conversations (id, org_id, customer_id, channel, status, last_message_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conversation.ID,
		conversation.OrgID,
		conversation.CustomerID,
		conversation.Channel,
		conversation.Status,
		conversation.LastMessageAt,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, customer_id, channel, status, last_message_at, created_at, updated_at
		 FROM conversations WHERE id = ?`,
		id,
	).Scan(&conversation).Error
	if err != nil {
		return nil, err
	}
	if conversation.ID == 0 {
		return nil, nil
	}
	return &conversation, nil
}

func (r *repo) FindOpenByCustomerChannel(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, ch channel.Channel) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, customer_id, channel, status, last_message_at, created_at, updated_at
		 FROM conversations
		 WHERE org_id = ? AND customer_id = ? AND channel = ? AND status <> ?
		 ORDER BY last_message_at DESC
		 LIMIT 1`,
		orgID,
		customerID,
		ch,
		domain.StatusResolvida,
	).Scan(&conversation).Error
	if err != nil {
		return nil, err
	}
	if conversation.ID == 0 {
		return nil, nil
	}
	return &conversation, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE conversations SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		to,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) TouchLastMessage(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE conversations SET last_message_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at,
		id,
	).Error
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, message *domain.Message) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO messages (id, conversation_id, sender, content, content_type, channel, is_internal, external_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		message.ID,
		message.ConversationID,
		message.Sender,
		message.Content,
		message.ContentType,
		message.Channel,
		message.IsInternal,
		message.ExternalID,
		message.CreatedAt,
	).Error
}

func (r *repo) FindMessageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Message, error) {
	var message domain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT id, conversation_id, sender, content, content_type, channel, is_internal, external_id, created_at
		 FROM messages WHERE id = ?`,
		id,
	).Scan(&message).Error
	if err != nil {
		return nil, err
	}
	if message.ID == 0 {
		return nil, nil
	}
	return &message, nil
}

func (r *repo) ListRecentMessages(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, limit int) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT id, conversation_id, sender, content, content_type, channel, is_internal, external_id, created_at
		 FROM messages
		 WHERE conversation_id = ? AND is_internal = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		conversationID,
		false,
		limit,
	).Scan(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repo) FindRecentOutbound(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, content string, since time.Time) (*domain.Message, error) {
	var message domain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT id, conversation_id, sender, content, content_type, channel, is_internal, external_id, created_at
		 FROM messages
		 WHERE conversation_id = ? AND sender IN (?, ?) AND content = ? AND created_at >= ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		conversationID,
		domain.SenderAI,
		domain.SenderAgent,
		content,
		since,
	).Scan(&message).Error
	if err != nil {
		return nil, err
	}
	if message.ID == 0 {
		return nil, nil
	}
	return &message, nil
}

func (r *repo) SetMessageExternalID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE messages SET external_id = ? WHERE id = ?`,
		externalID,
		id,
	).Error
}
