package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/messagequeue/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const itemColumns = `id, org_id, customer_id, charge_id, conversation_id, channel, content, status, priority,
	scheduled_for, attempt_count, max_attempts, last_attempt_at, last_error, provider_msg_id, sent_at,
	created_at, updated_at`

func (r *repo) Enqueue(ctx context.Context, db *gorm.DB, item *domain.Item) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO message_queue_items
		 (id, org_id, customer_id, charge_id, conversation_id, channel, content, status, priority,
		  scheduled_for, attempt_count, max_attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OrgID,
		item.CustomerID,
		item.ChargeID,
		item.ConversationID,
		item.Channel,
		item.Content,
		item.Status,
		item.Priority,
		item.ScheduledFor,
		item.AttemptCount,
		item.MaxAttempts,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Item, error) {
	var item domain.Item
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM message_queue_items WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FetchDispatchable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Item, error) {
	var items []*domain.Item
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+`
		 FROM message_queue_items
		 WHERE status IN (?, ?) AND scheduled_for <= ? AND attempt_count < max_attempts
		 ORDER BY priority DESC, scheduled_for ASC
		 LIMIT ?`,
		domain.StatusPending,
		domain.StatusFailed,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE message_queue_items
		 SET status = ?, last_attempt_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		domain.StatusProcessing,
		at,
		at,
		id,
		domain.StatusPending,
		domain.StatusFailed,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, providerMsgID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE message_queue_items
		 SET status = ?, provider_msg_id = ?, sent_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.StatusSent,
		providerMsgID,
		at,
		at,
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string) (domain.Status, error) {
	item, err := r.FindByID(ctx, db, id)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", domain.ErrNotFound
	}

	attempts := item.AttemptCount + 1
	next := domain.StatusFailed
	if attempts >= item.MaxAttempts {
		next = domain.StatusDeadLetter
	}

	err = db.WithContext(ctx).Exec(
		`UPDATE message_queue_items
		 SET status = ?, attempt_count = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		next,
		attempts,
		lastError,
		id,
	).Error
	if err != nil {
		return "", err
	}
	return next, nil
}

func (r *repo) CountQueuedSince(ctx context.Context, db *gorm.DB, orgID snowflake.ID, t time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM message_queue_items WHERE org_id = ? AND created_at >= ?`,
		orgID,
		t,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) RecentByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID, limit int) ([]*domain.Item, error) {
	var items []*domain.Item
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+`
		 FROM message_queue_items
		 WHERE customer_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		customerID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
