package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/agentconfig/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (domain.AgentConfig, error) {
	var cfg domain.AgentConfig
	err := db.WithContext(ctx).Raw(
		`SELECT org_id, enabled, max_daily_messages, escalation_threshold, high_value_threshold_cents,
		        working_hours_start, working_hours_end, timezone, system_prompt_override, created_at, updated_at
		 FROM agent_configs WHERE org_id = ?`,
		orgID,
	).Scan(&cfg).Error
	if err != nil {
		return domain.AgentConfig{}, err
	}
	if cfg.OrgID == 0 {
		return domain.Default(orgID), nil
	}
	return cfg, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, cfg *domain.AgentConfig) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO agent_configs
		 (org_id, enabled, max_daily_messages, escalation_threshold, high_value_threshold_cents,
		  working_hours_start, working_hours_end, timezone, system_prompt_override, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id) DO UPDATE SET
		   enabled = excluded.enabled,
		   max_daily_messages = excluded.max_daily_messages,
		   escalation_threshold = excluded.escalation_threshold,
		   high_value_threshold_cents = excluded.high_value_threshold_cents,
		   working_hours_start = excluded.working_hours_start,
		   working_hours_end = excluded.working_hours_end,
		   timezone = excluded.timezone,
		   system_prompt_override = excluded.system_prompt_override,
		   updated_at = excluded.updated_at`,
		cfg.OrgID,
		cfg.Enabled,
		cfg.MaxDailyMessages,
		cfg.EscalationThreshold,
		cfg.HighValueThresholdCents,
		cfg.WorkingHoursStart,
		cfg.WorkingHoursEnd,
		cfg.Timezone,
		cfg.SystemPromptOverride,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	).Error
}

func (r *repo) ListEnabledOrgs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var orgIDs []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT org_id FROM agent_configs WHERE enabled = ? ORDER BY org_id ASC`,
		true,
	).Scan(&orgIDs).Error
	if err != nil {
		return nil, err
	}
	return orgIDs, nil
}
