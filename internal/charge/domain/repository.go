package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, charge *Charge) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Charge, error)
	// ListCollectible returns the tenant's charges still eligible for
	// dunning (PENDING or OVERDUE).
	ListCollectible(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]*Charge, error)
	// MarkOverdue flips a PENDING charge to OVERDUE. A charge that moved
	// state under us (paid, canceled) is left alone.
	MarkOverdue(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	ListOpenByCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, limit int) ([]*Charge, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("not_found")
)
