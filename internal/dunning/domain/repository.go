package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRule(ctx context.Context, db *gorm.DB, rule *Rule) error
	InsertStep(ctx context.Context, db *gorm.DB, step *Step) error
	// ListEnabledSteps returns the enabled steps of the tenant's active
	// rules, ordered by offset.
	ListEnabledSteps(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*Step, error)
	FindActiveRule(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Rule, error)
	// InsertNotificationLog inserts the exactly-once marker. Callers must
	// treat a duplicate-key error as "already fired", not a failure.
	InsertNotificationLog(ctx context.Context, db *gorm.DB, log *NotificationLog) error
	NotificationExists(ctx context.Context, db *gorm.DB, chargeID, stepID snowflake.ID) (bool, error)
	ListNotificationsByCharge(ctx context.Context, db *gorm.DB, chargeID snowflake.ID, limit int) ([]*NotificationLog, error)
}

type Service interface {
	// EnsureDefaultRule provisions the configured default ladder for a
	// tenant that has no active rule yet.
	EnsureDefaultRule(ctx context.Context) (*Rule, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrAlreadyFired        = errors.New("already_fired")
)
