package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/channel"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/dunning/domain"
	"github.com/smallbiznis/cobranca/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Presets *config.DunningConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	presets *config.DunningConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("dunning.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		presets: p.Presets,
	}
}

func (s *Service) EnsureDefaultRule(ctx context.Context) (*domain.Rule, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	existing, err := s.repo.FindActiveRule(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	preset := s.presets.Current()
	now := s.clock.Now().UTC()
	rule := &domain.Rule{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      preset.RuleName,
		Active:    true,
		Timezone:  preset.Timezone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertRule(ctx, tx, rule); err != nil {
			return err
		}
		for _, step := range preset.Steps {
			if err := s.repo.InsertStep(ctx, tx, &domain.Step{
				ID:         s.genID.Generate(),
				RuleID:     rule.ID,
				Trigger:    domain.StepTrigger(step.Trigger),
				OffsetDays: step.OffsetDays,
				Channel:    channel.Channel(step.Channel),
				Template:   step.Template,
				Enabled:    true,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("default dunning rule provisioned",
		zap.String("org_id", orgID.String()),
		zap.Int("steps", len(preset.Steps)),
	)
	return rule, nil
}
