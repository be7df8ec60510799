package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Customer struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Name          string       `gorm:"not null" json:"name"`
	Email         string       `gorm:"not null" json:"email"`
	Phone         string       `json:"phone,omitempty"`
	WhatsappPhone string       `gorm:"column:whatsapp_phone" json:"whatsapp_phone,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }
