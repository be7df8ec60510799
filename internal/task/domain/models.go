package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Priority string

const (
	PriorityAlta    Priority = "ALTA"
	PriorityCritica Priority = "CRITICA"
)

type Status string

const (
	StatusPendente  Status = "PENDENTE"
	StatusConcluida Status = "CONCLUIDA"
)

// CollectionTask is the human follow-up surface: dead letters raise ALTA
// tasks, escalations raise CRITICA tasks.
type CollectionTask struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	CustomerID  snowflake.ID  `gorm:"not null;index" json:"customer_id"`
	ChargeID    *snowflake.ID `json:"charge_id,omitempty"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `json:"description"`
	Status      Status        `gorm:"not null;default:PENDENTE" json:"status"`
	Priority    Priority      `gorm:"not null" json:"priority"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CollectionTask) TableName() string { return "collection_tasks" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, task *CollectionTask) error
	ListOpenByCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, limit int) ([]*CollectionTask, error)
}

var ErrInvalidOrganization = errors.New("invalid_organization")
