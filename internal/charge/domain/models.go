package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ChargeStatus string

const (
	ChargeStatusPending  ChargeStatus = "PENDING"
	ChargeStatusOverdue  ChargeStatus = "OVERDUE"
	ChargeStatusPartial  ChargeStatus = "PARTIAL"
	ChargeStatusPaid     ChargeStatus = "PAID"
	ChargeStatusCanceled ChargeStatus = "CANCELED"
)

type Charge struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"organization_id"`
	CustomerID  snowflake.ID `gorm:"not null;index" json:"customer_id"`
	Description string       `gorm:"not null" json:"description"`
	AmountCents int64        `gorm:"not null" json:"amount_cents"`
	DueDate     time.Time    `gorm:"not null" json:"due_date"`
	Status      ChargeStatus `gorm:"not null;default:PENDING" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Charge) TableName() string { return "charges" }

// DaysPastDue returns the difference in whole calendar days between now and
// the due date in the given location. Negative means the charge is not due
// yet.
func (c Charge) DaysPastDue(now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	today := truncateToDay(now.In(loc))
	due := truncateToDay(c.DueDate.In(loc))
	return int(today.Sub(due).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
