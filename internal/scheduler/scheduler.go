package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/smallbiznis/cobranca/internal/agent/domain"
	configdomain "github.com/smallbiznis/cobranca/internal/agentconfig/domain"
	"github.com/smallbiznis/cobranca/internal/clock"
	dispatchservice "github.com/smallbiznis/cobranca/internal/dispatch/service"
	"github.com/smallbiznis/cobranca/internal/lock"
	"github.com/smallbiznis/cobranca/internal/observability/metrics"
	"github.com/smallbiznis/cobranca/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	AgentSvc     agentdomain.Service
	Dispatcher   *dispatchservice.Dispatcher
	AgentConfigs configdomain.Repository
	Locker       *lock.Locker `optional:"true"`
	Config       Config       `optional:"true"`
}

// Scheduler drives the two periodic jobs: the per-tenant dunning pass and
// the global queue dispatch. The redis lock only spreads replicas across
// tenants; exactly-once firing is enforced in the database.
type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	agentSvc     agentdomain.Service
	dispatcher   *dispatchservice.Dispatcher
	agentConfigs configdomain.Repository
	locker       *lock.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.AgentSvc == nil || p.Dispatcher == nil || p.AgentConfigs == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		agentSvc:     p.AgentSvc,
		dispatcher:   p.Dispatcher,
		agentConfigs: p.AgentConfigs,
		locker:       p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	agentMetrics := metrics.Agent()
	agentMetrics.IncJobRun(name)

	err := fn(ctx)
	agentMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		agentMetrics.IncJobTimeout(name)
	}
	agentMetrics.IncJobError(name)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	err = errors.Join(err, s.runJob(parent, "dunning", s.cfg.JobTimeout, s.DunningJob))
	err = errors.Join(err, s.runJob(parent, "dispatch", s.cfg.JobTimeout, s.DispatchJob))

	return err
}

// DunningJob runs the scheduled dunning pass for every tenant with the
// agent switched on. Per-tenant failures are joined and never stop the
// loop.
func (s *Scheduler) DunningJob(ctx context.Context) error {
	orgs, err := s.agentConfigs.ListEnabledOrgs(ctx, s.db)
	if err != nil {
		return err
	}

	var jobErr error
	for _, orgID := range orgs {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		orgCtx := orgcontext.WithOrgID(ctx, orgID)
		release, ok := s.tryTenantLock(orgCtx, orgID)
		if !ok {
			continue
		}

		report, err := s.agentSvc.ProcessScheduledDunning(orgCtx)
		release()
		if err != nil {
			jobErr = errors.Join(jobErr, fmt.Errorf("org %s: %w", orgID, err))
		}
		if report.Queued > 0 || report.Errors > 0 {
			s.log.Info("tenant dunning pass",
				zap.String("org_id", orgID.String()),
				zap.Int("queued", report.Queued),
				zap.Int("skipped", report.Skipped),
				zap.Int("errors", report.Errors),
			)
		}
	}
	return jobErr
}

func (s *Scheduler) DispatchJob(ctx context.Context) error {
	_, err := s.dispatcher.ProcessPendingQueue(ctx, s.cfg.DispatchBatchSize)
	return err
}

// tryTenantLock takes the best-effort per-tenant run lock. Without a locker
// (single-replica deployments) every tenant is processed.
func (s *Scheduler) tryTenantLock(ctx context.Context, orgID snowflake.ID) (release func(), ok bool) {
	if s.locker == nil {
		return func() {}, true
	}

	key := fmt.Sprintf("scheduler:dunning:%s", orgID)
	token, acquired, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("tenant lock failed, proceeding without it",
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
		return func() {}, true
	}
	if !acquired {
		return nil, false
	}
	return func() {
		if err := s.locker.Release(ctx, key, token); err != nil {
			s.log.Warn("tenant lock release failed", zap.Error(err))
		}
	}, true
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
