package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Enqueue(ctx context.Context, db *gorm.DB, item *Item) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Item, error)
	// FetchDispatchable returns items eligible for a delivery attempt:
	// PENDING or FAILED, due, with attempts left, highest priority first
	// then oldest schedule.
	FetchDispatchable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Item, error)
	// Claim is the atomic single-row PENDING/FAILED -> PROCESSING
	// transition. Exactly one of two concurrent workers wins.
	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, providerMsgID string, at time.Time) error
	// MarkFailed increments attempt_count and resolves the next status:
	// FAILED while attempts remain, DEAD_LETTER once exhausted. Returns
	// the status written.
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string) (Status, error)
	// CountQueuedSince counts the tenant's items created at or after t,
	// regardless of eventual status. Feeds the daily cap.
	CountQueuedSince(ctx context.Context, db *gorm.DB, orgID snowflake.ID, t time.Time) (int64, error)
	// RecentByCustomer returns the customer's most recent items, newest
	// first.
	RecentByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID, limit int) ([]*Item, error)
}

var (
	ErrNotFound     = errors.New("not_found")
	ErrAlreadyTaken = errors.New("already_taken")
)
