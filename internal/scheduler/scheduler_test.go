package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	agentdomain "github.com/smallbiznis/cobranca/internal/agent/domain"
	configdomain "github.com/smallbiznis/cobranca/internal/agentconfig/domain"
	agentconfigrepository "github.com/smallbiznis/cobranca/internal/agentconfig/repository"
	"github.com/smallbiznis/cobranca/internal/clock"
	dispatchdomain "github.com/smallbiznis/cobranca/internal/dispatch/domain"
	dispatchservice "github.com/smallbiznis/cobranca/internal/dispatch/service"
	queuedomain "github.com/smallbiznis/cobranca/internal/messagequeue/domain"
	queuerepository "github.com/smallbiznis/cobranca/internal/messagequeue/repository"
	"github.com/smallbiznis/cobranca/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)

// mockAgentSvc records which tenants it ran for and fails on demand.
type mockAgentSvc struct {
	failFor map[snowflake.ID]error
	ranFor  []snowflake.ID
}

func (m *mockAgentSvc) ProcessScheduledDunning(ctx context.Context) (agentdomain.Report, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return agentdomain.Report{}, errors.New("missing org")
	}
	m.ranFor = append(m.ranFor, orgID)
	if err, found := m.failFor[orgID]; found {
		return agentdomain.Report{Errors: 1}, err
	}
	return agentdomain.Report{Queued: 1}, nil
}

func (m *mockAgentSvc) ProcessInboundMessage(ctx context.Context, conversationID, messageID snowflake.ID) error {
	return nil
}

func setupScheduler(t *testing.T, agentSvc agentdomain.Service) (*Scheduler, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&configdomain.AgentConfig{}, &queuedomain.Item{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(testNow)
	log := zap.NewNop()

	dispatcher := dispatchservice.New(dispatchservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Registry: dispatchdomain.NewRegistry(),
		Queue:    queuerepository.Provide(),
	})

	s, err := New(Params{
		DB:           db,
		Log:          log,
		Clock:        clk,
		AgentSvc:     agentSvc,
		Dispatcher:   dispatcher,
		AgentConfigs: agentconfigrepository.Provide(),
	})
	require.NoError(t, err)
	return s, db, node
}

func enableOrg(t *testing.T, db *gorm.DB, orgID snowflake.ID) {
	t.Helper()
	cfg := configdomain.Default(orgID)
	cfg.Enabled = true
	cfg.CreatedAt = testNow
	cfg.UpdatedAt = testNow
	require.NoError(t, agentconfigrepository.Provide().Upsert(context.Background(), db, &cfg))
}

func TestNew_RejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunJob_TimeoutIsSoft(t *testing.T) {
	s, _, _ := setupScheduler(t, &mockAgentSvc{})

	err := s.runJob(context.Background(), "dunning", time.Second, func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	assert.NoError(t, err)

	err = s.runJob(context.Background(), "dunning", time.Second, func(ctx context.Context) error {
		return context.Canceled
	})
	assert.NoError(t, err)
}

func TestRunJob_RealErrorIsWrappedWithJobName(t *testing.T) {
	s, _, _ := setupScheduler(t, &mockAgentSvc{})

	boom := errors.New("boom")
	err := s.runJob(context.Background(), "dunning", time.Second, func(ctx context.Context) error {
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(err.Error(), "dunning:"))
}

func TestDunningJob_ProcessesEveryEnabledTenant(t *testing.T) {
	agentSvc := &mockAgentSvc{}
	s, db, node := setupScheduler(t, agentSvc)

	orgA := node.Generate()
	orgB := node.Generate()
	enableOrg(t, db, orgA)
	enableOrg(t, db, orgB)

	require.NoError(t, s.DunningJob(context.Background()))
	assert.ElementsMatch(t, []snowflake.ID{orgA, orgB}, agentSvc.ranFor)
}

func TestDunningJob_TenantFailureDoesNotStopTheLoop(t *testing.T) {
	broken := errors.New("provider down")
	agentSvc := &mockAgentSvc{failFor: map[snowflake.ID]error{}}
	s, db, node := setupScheduler(t, agentSvc)

	orgA := node.Generate()
	orgB := node.Generate()
	enableOrg(t, db, orgA)
	enableOrg(t, db, orgB)
	agentSvc.failFor[orgA] = broken

	err := s.DunningJob(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, broken)
	assert.ElementsMatch(t, []snowflake.ID{orgA, orgB}, agentSvc.ranFor)
}

func TestDunningJob_SkipsDisabledTenants(t *testing.T) {
	agentSvc := &mockAgentSvc{}
	s, db, node := setupScheduler(t, agentSvc)

	enabled := node.Generate()
	disabled := node.Generate()
	enableOrg(t, db, enabled)
	cfg := configdomain.Default(disabled)
	cfg.CreatedAt = testNow
	cfg.UpdatedAt = testNow
	require.NoError(t, agentconfigrepository.Provide().Upsert(context.Background(), db, &cfg))

	require.NoError(t, s.DunningJob(context.Background()))
	assert.Equal(t, []snowflake.ID{enabled}, agentSvc.ranFor)
}

func TestRunOnce_JoinsJobErrors(t *testing.T) {
	broken := errors.New("provider down")
	agentSvc := &mockAgentSvc{failFor: map[snowflake.ID]error{}}
	s, db, node := setupScheduler(t, agentSvc)

	orgA := node.Generate()
	enableOrg(t, db, orgA)
	agentSvc.failFor[orgA] = broken

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, broken)
	assert.Contains(t, err.Error(), "dunning")
}

func TestRunOnce_EmptyQueueAndNoTenantsIsClean(t *testing.T) {
	s, _, _ := setupScheduler(t, &mockAgentSvc{})
	assert.NoError(t, s.RunOnce(context.Background()))
}
