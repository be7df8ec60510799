package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/dunning/domain"
	"github.com/smallbiznis/cobranca/internal/dunning/repository"
	"github.com/smallbiznis/cobranca/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)

func setupDunning(t *testing.T) (domain.Service, *gorm.DB, snowflake.ID) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Rule{}, &domain.Step{}, &domain.NotificationLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	holder, err := config.NewDunningConfigHolder()
	require.NoError(t, err)

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(testNow),
		Repo:    repository.Provide(),
		Presets: holder,
	})
	return svc, db, node.Generate()
}

func TestEnsureDefaultRule_ProvisionsLadderFromPresets(t *testing.T) {
	svc, db, orgID := setupDunning(t)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	rule, err := svc.EnsureDefaultRule(ctx)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, orgID, rule.OrgID)
	assert.True(t, rule.Active)

	steps, err := repository.Provide().ListEnabledSteps(context.Background(), db, orgID)
	require.NoError(t, err)
	assert.Len(t, steps, len(config.DefaultDunningConfig().Steps))
}

func TestEnsureDefaultRule_StampsRowsWithInjectedClock(t *testing.T) {
	svc, db, orgID := setupDunning(t)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	rule, err := svc.EnsureDefaultRule(ctx)
	require.NoError(t, err)
	assert.Equal(t, testNow, rule.CreatedAt.UTC())
	assert.Equal(t, testNow, rule.UpdatedAt.UTC())

	steps, err := repository.Provide().ListEnabledSteps(context.Background(), db, orgID)
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	for _, step := range steps {
		assert.Equal(t, testNow, step.CreatedAt.UTC())
	}
}

func TestEnsureDefaultRule_IsIdempotent(t *testing.T) {
	svc, _, orgID := setupDunning(t)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	first, err := svc.EnsureDefaultRule(ctx)
	require.NoError(t, err)
	second, err := svc.EnsureDefaultRule(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestEnsureDefaultRule_RejectsMissingOrg(t *testing.T) {
	svc, _, _ := setupDunning(t)

	_, err := svc.EnsureDefaultRule(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}
