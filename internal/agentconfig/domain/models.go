package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// AgentConfig is the tenant's agent policy. The core only ever reads it.
type AgentConfig struct {
	OrgID                   snowflake.ID `gorm:"primaryKey" json:"organization_id"`
	Enabled                 bool         `gorm:"not null;default:false" json:"enabled"`
	MaxDailyMessages        int          `gorm:"not null;default:100" json:"max_daily_messages"`
	EscalationThreshold     float64      `gorm:"not null;default:0.6" json:"escalation_threshold"`
	HighValueThresholdCents int64        `gorm:"not null;default:500000" json:"high_value_threshold_cents"`
	WorkingHoursStart       int          `gorm:"not null;default:8" json:"working_hours_start"`
	WorkingHoursEnd         int          `gorm:"not null;default:20" json:"working_hours_end"`
	Timezone                string       `gorm:"not null;default:America/Sao_Paulo" json:"timezone"`
	SystemPromptOverride    string       `json:"system_prompt_override,omitempty"`
	CreatedAt               time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt               time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (AgentConfig) TableName() string { return "agent_configs" }

func Default(orgID snowflake.ID) AgentConfig {
	return AgentConfig{
		OrgID:                   orgID,
		Enabled:                 false,
		MaxDailyMessages:        100,
		EscalationThreshold:     0.6,
		HighValueThresholdCents: 500000,
		WorkingHoursStart:       8,
		WorkingHoursEnd:         20,
		Timezone:                "America/Sao_Paulo",
	}
}

// Location resolves the tenant timezone, falling back to UTC on a bad name
// so window checks never depend on server-local time.
func (c AgentConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Repository interface {
	// Get returns the tenant's config, or a disabled default when none
	// is stored.
	Get(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (AgentConfig, error)
	Upsert(ctx context.Context, db *gorm.DB, cfg *AgentConfig) error
	// ListEnabledOrgs drives the scheduler's tenant loop.
	ListEnabledOrgs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
}
