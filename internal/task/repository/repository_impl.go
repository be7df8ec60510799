package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/task/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, task *domain.CollectionTask) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO collection_tasks (id, org_id, customer_id, charge_id, title, description, status, priority, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.OrgID,
		task.CustomerID,
		task.ChargeID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.CreatedAt,
		task.UpdatedAt,
	).Error
}

func (r *repo) ListOpenByCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, limit int) ([]*domain.CollectionTask, error) {
	var tasks []*domain.CollectionTask
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, customer_id, charge_id, title, description, status, priority, created_at, updated_at
		 FROM collection_tasks
		 WHERE org_id = ? AND customer_id = ? AND status = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		orgID,
		customerID,
		domain.StatusPendente,
		limit,
	).Scan(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
