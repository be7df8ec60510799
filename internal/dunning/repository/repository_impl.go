package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/dunning/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRule(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO dunning_rules (id, org_id, name, active, timezone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.OrgID,
		rule.Name,
		rule.Active,
		rule.Timezone,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Error
}

func (r *repo) InsertStep(ctx context.Context, db *gorm.DB, step *domain.Step) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO dunning_steps (id, rule_id, trigger, offset_days, channel, template, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID,
		step.RuleID,
		step.Trigger,
		step.OffsetDays,
		step.Channel,
		step.Template,
		step.Enabled,
		step.CreatedAt,
	).Error
}

func (r *repo) ListEnabledSteps(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*domain.Step, error) {
	var steps []*domain.Step
	err := db.WithContext(ctx).Raw(
		`SELECT s.id, s.rule_id, s.trigger, s.offset_days, s.channel, s.template, s.enabled, s.created_at
		 FROM dunning_steps s
		 JOIN dunning_rules r ON r.id = s.rule_id
		 WHERE r.org_id = ? AND r.active = ? AND s.enabled = ?
		 ORDER BY s.offset_days ASC, s.id ASC`,
		orgID,
		true,
		true,
	).Scan(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *repo) FindActiveRule(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, active, timezone, created_at, updated_at
		 FROM dunning_rules
		 WHERE org_id = ? AND active = ?
		 ORDER BY created_at ASC
		 LIMIT 1`,
		orgID,
		true,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) InsertNotificationLog(ctx context.Context, db *gorm.DB, log *domain.NotificationLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notification_logs (id, charge_id, step_id, channel, status, scheduled_for, rendered_message, meta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.ChargeID,
		log.StepID,
		log.Channel,
		log.Status,
		log.ScheduledFor,
		log.RenderedMessage,
		log.Meta,
		log.CreatedAt,
	).Error
}

func (r *repo) NotificationExists(ctx context.Context, db *gorm.DB, chargeID, stepID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM notification_logs WHERE charge_id = ? AND step_id = ?`,
		chargeID,
		stepID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListNotificationsByCharge(ctx context.Context, db *gorm.DB, chargeID snowflake.ID, limit int) ([]*domain.NotificationLog, error) {
	var logs []*domain.NotificationLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, charge_id, step_id, channel, status, scheduled_for, rendered_message, meta, created_at
		 FROM notification_logs
		 WHERE charge_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		chargeID,
		limit,
	).Scan(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
