package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/channel"
	"gorm.io/datatypes"
)

type StepTrigger string

const (
	TriggerBeforeDue StepTrigger = "BEFORE_DUE"
	TriggerOnDue     StepTrigger = "ON_DUE"
	TriggerAfterDue  StepTrigger = "AFTER_DUE"
)

// Rule is a tenant-scoped dunning ladder.
type Rule struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Name      string       `gorm:"not null" json:"name"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	Timezone  string       `gorm:"not null;default:America/Sao_Paulo" json:"timezone"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Rule) TableName() string { return "dunning_rules" }

// Step is one rung of a rule's ladder.
type Step struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	RuleID     snowflake.ID    `gorm:"not null;index" json:"rule_id"`
	Trigger    StepTrigger     `gorm:"not null" json:"trigger"`
	OffsetDays int             `gorm:"not null" json:"offset_days"`
	Channel    channel.Channel `gorm:"not null" json:"channel"`
	Template   string          `gorm:"not null" json:"template"`
	Enabled    bool            `gorm:"not null;default:true" json:"enabled"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Step) TableName() string { return "dunning_steps" }

// Fires reports whether the step is due at the given distance from the due
// date. diffDays is today minus due date in days: negative before due, zero
// on the due date, positive after.
func (s Step) Fires(diffDays int) bool {
	switch s.Trigger {
	case TriggerBeforeDue:
		return diffDays == -s.OffsetDays
	case TriggerOnDue:
		return diffDays == 0
	case TriggerAfterDue:
		return diffDays == s.OffsetDays
	}
	return false
}

// NotificationLog records that a step fired for a charge. The unique
// (charge_id, step_id) constraint is the exactly-once guard: concurrent
// scheduler runs race on the insert and the loser backs off.
type NotificationLog struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	ChargeID        snowflake.ID      `gorm:"not null;uniqueIndex:idx_notification_charge_step" json:"charge_id"`
	StepID          snowflake.ID      `gorm:"not null;uniqueIndex:idx_notification_charge_step" json:"step_id"`
	Channel         channel.Channel   `gorm:"not null" json:"channel"`
	Status          string            `gorm:"not null" json:"status"`
	ScheduledFor    time.Time         `json:"scheduled_for"`
	RenderedMessage string            `json:"rendered_message"`
	Meta            datatypes.JSONMap `gorm:"type:jsonb" json:"meta,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (NotificationLog) TableName() string { return "notification_logs" }
