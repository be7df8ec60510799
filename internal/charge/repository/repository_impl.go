package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/charge/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, charge *domain.Charge) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO charges (id, org_id, customer_id, description, amount_cents, due_date, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		charge.ID,
		charge.OrgID,
		charge.CustomerID,
		charge.Description,
		charge.AmountCents,
		charge.DueDate,
		charge.Status,
		charge.CreatedAt,
		charge.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Charge, error) {
	var charge domain.Charge
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, customer_id, description, amount_cents, due_date, status, created_at, updated_at
		 FROM charges WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&charge).Error
	if err != nil {
		return nil, err
	}
	if charge.ID == 0 {
		return nil, nil
	}
	return &charge, nil
}

func (r *repo) ListCollectible(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]*domain.Charge, error) {
	var charges []*domain.Charge
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, customer_id, description, amount_cents, due_date, status, created_at, updated_at
		 FROM charges
		 WHERE org_id = ? AND status IN (?, ?)
		 ORDER BY due_date ASC, id ASC
		 LIMIT ?`,
		orgID,
		domain.ChargeStatusPending,
		domain.ChargeStatusOverdue,
		limit,
	).Scan(&charges).Error
	if err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE charges SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		domain.ChargeStatusOverdue,
		id,
		domain.ChargeStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListOpenByCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, limit int) ([]*domain.Charge, error) {
	var charges []*domain.Charge
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, customer_id, description, amount_cents, due_date, status, created_at, updated_at
		 FROM charges
		 WHERE org_id = ? AND customer_id = ? AND status IN (?, ?, ?)
		 ORDER BY due_date ASC
		 LIMIT ?`,
		orgID,
		customerID,
		domain.ChargeStatusPending,
		domain.ChargeStatusOverdue,
		domain.ChargeStatusPartial,
		limit,
	).Scan(&charges).Error
	if err != nil {
		return nil, err
	}
	return charges, nil
}
