package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/agent/domain"
	"github.com/smallbiznis/cobranca/internal/agent/escalation"
	configdomain "github.com/smallbiznis/cobranca/internal/agentconfig/domain"
	chargedomain "github.com/smallbiznis/cobranca/internal/charge/domain"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	conversationdomain "github.com/smallbiznis/cobranca/internal/conversation/domain"
	customerdomain "github.com/smallbiznis/cobranca/internal/customer/domain"
	decisionlogdomain "github.com/smallbiznis/cobranca/internal/decisionlog/domain"
	dunningdomain "github.com/smallbiznis/cobranca/internal/dunning/domain"
	queuedomain "github.com/smallbiznis/cobranca/internal/messagequeue/domain"
	"github.com/smallbiznis/cobranca/internal/observability/metrics"
	"github.com/smallbiznis/cobranca/internal/orgcontext"
	taskdomain "github.com/smallbiznis/cobranca/internal/task/domain"
	"github.com/smallbiznis/cobranca/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Provider domain.Provider
	Matcher  *escalation.Matcher
	Executor *escalation.Executor

	Customers        customerdomain.Repository
	Charges          chargedomain.Repository
	Dunning          dunningdomain.Repository
	DunningSvc       dunningdomain.Service
	Queue            queuedomain.Repository
	Tasks            taskdomain.Repository
	DecisionLogs     decisionlogdomain.Repository
	AgentConfigs     configdomain.Repository
	Conversations    conversationdomain.Service
	ConversationRepo conversationdomain.Repository
}

// Service is the orchestrator behind both agent entry points: the scheduled
// dunning pass and the inbound message reaction.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	provider domain.Provider
	matcher  *escalation.Matcher
	executor *escalation.Executor

	customers        customerdomain.Repository
	charges          chargedomain.Repository
	dunning          dunningdomain.Repository
	dunningSvc       dunningdomain.Service
	queue            queuedomain.Repository
	tasks            taskdomain.Repository
	decisionLogs     decisionlogdomain.Repository
	agentConfigs     configdomain.Repository
	conversations    conversationdomain.Service
	conversationRepo conversationdomain.Repository

	batchSize int
}

func New(p Params) domain.Service {
	batch := p.Cfg.SchedulerBatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("agent.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		provider:         p.Provider,
		matcher:          p.Matcher,
		executor:         p.Executor,
		customers:        p.Customers,
		charges:          p.Charges,
		dunning:          p.Dunning,
		dunningSvc:       p.DunningSvc,
		queue:            p.Queue,
		tasks:            p.Tasks,
		decisionLogs:     p.DecisionLogs,
		agentConfigs:     p.AgentConfigs,
		conversations:    p.Conversations,
		conversationRepo: p.ConversationRepo,
		batchSize:        batch,
	}
}

// dunningPass carries the mutable tallies of one scheduled run.
type dunningPass struct {
	cfg       configdomain.AgentConfig
	loc       *time.Location
	now       time.Time
	remaining int64
	report    domain.Report
}

func (s *Service) ProcessScheduledDunning(ctx context.Context) (domain.Report, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Report{}, chargedomain.ErrInvalidOrganization
	}
	log := s.log.With(zap.String("org_id", orgID.String()))

	cfg, err := s.agentConfigs.Get(ctx, s.db, orgID)
	if err != nil {
		return domain.Report{}, err
	}
	if !cfg.Enabled {
		log.Debug("agent disabled, skipping dunning pass")
		return domain.Report{}, nil
	}

	steps, err := s.dunning.ListEnabledSteps(ctx, s.db, orgID)
	if err != nil {
		return domain.Report{}, err
	}
	if len(steps) == 0 {
		if _, err := s.dunningSvc.EnsureDefaultRule(ctx); err != nil {
			return domain.Report{}, err
		}
		steps, err = s.dunning.ListEnabledSteps(ctx, s.db, orgID)
		if err != nil {
			return domain.Report{}, err
		}
	}

	loc := time.UTC
	if rule, err := s.dunning.FindActiveRule(ctx, s.db, orgID); err == nil && rule != nil {
		if parsed, err := time.LoadLocation(rule.Timezone); err == nil {
			loc = parsed
		}
	}

	pass := &dunningPass{
		cfg: cfg,
		loc: loc,
		now: s.clock.Now(),
	}

	dayStart := startOfDay(pass.now, cfg.Location())
	queuedToday, err := s.queue.CountQueuedSince(ctx, s.db, orgID, dayStart)
	if err != nil {
		return domain.Report{}, err
	}
	pass.remaining = int64(cfg.MaxDailyMessages) - queuedToday

	charges, err := s.charges.ListCollectible(ctx, s.db, orgID, s.batchSize)
	if err != nil {
		return domain.Report{}, err
	}

	var errs error
	for _, charge := range charges {
		if err := s.processCharge(ctx, pass, charge, steps); err != nil {
			pass.report.Errors++
			metrics.Agent().IncDunningError()
			log.Warn("charge dunning failed",
				zap.String("charge_id", charge.ID.String()),
				zap.Error(err),
			)
			errs = errors.Join(errs, fmt.Errorf("charge %s: %w", charge.ID, err))
		}
	}

	log.Info("dunning pass finished",
		zap.Int("queued", pass.report.Queued),
		zap.Int("skipped", pass.report.Skipped),
		zap.Int("errors", pass.report.Errors),
	)
	return pass.report, errs
}

func (s *Service) processCharge(
	ctx context.Context,
	pass *dunningPass,
	charge *chargedomain.Charge,
	steps []*dunningdomain.Step,
) error {
	diff := charge.DaysPastDue(pass.now, pass.loc)

	if charge.Status == chargedomain.ChargeStatusPending && diff > 0 {
		flipped, err := s.charges.MarkOverdue(ctx, s.db, charge.ID)
		if err != nil {
			return err
		}
		if flipped {
			charge.Status = chargedomain.ChargeStatusOverdue
		}
	}

	var firing []*dunningdomain.Step
	for _, step := range steps {
		if step.Fires(diff) {
			firing = append(firing, step)
		}
	}
	if len(firing) == 0 {
		return nil
	}

	customer, err := s.customers.FindByID(ctx, s.db, charge.OrgID, charge.CustomerID)
	if err != nil {
		return err
	}
	if customer == nil {
		pass.report.Skipped += len(firing)
		metrics.Agent().IncDunningSkipped(metrics.SkipReasonNoContext)
		return nil
	}

	for _, step := range firing {
		if err := s.fireStep(ctx, pass, charge, customer, step, diff); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) fireStep(
	ctx context.Context,
	pass *dunningPass,
	charge *chargedomain.Charge,
	customer *customerdomain.Customer,
	step *dunningdomain.Step,
	diff int,
) error {
	fired, err := s.dunning.NotificationExists(ctx, s.db, charge.ID, step.ID)
	if err != nil {
		return err
	}
	if fired {
		pass.report.Skipped++
		metrics.Agent().IncDunningSkipped(metrics.SkipReasonAlreadyFired)
		return nil
	}

	if pass.remaining <= 0 {
		pass.report.Skipped++
		metrics.Agent().IncDunningSkipped(metrics.SkipReasonDailyCap)
		return nil
	}

	cctx := s.buildCollectionContext(ctx, customer, charge, step.Channel, diff, nil)
	decided, err := s.provider.DecideCollection(ctx, cctx)
	if err != nil {
		return err
	}

	chargeID := charge.ID
	s.writeDecisionLog(ctx, &decisionlogdomain.AgentDecisionLog{
		OrgID:      charge.OrgID,
		CustomerID: customer.ID,
		ChargeID:   &chargeID,
		Action:     string(decided.Action),
		Reasoning:  decided.Reasoning,
		Confidence: decided.Confidence,
		InputContext: datatypes.JSONMap{
			"channel":      string(step.Channel),
			"days_overdue": diff,
			"trigger":      string(step.Trigger),
		},
		OutputMessage:    decided.Message,
		EscalationReason: string(decided.EscalationReason),
	})

	switch {
	case decided.Action == domain.ActionSkip:
		pass.report.Skipped++
		metrics.Agent().IncDunningSkipped(metrics.SkipReasonDecisionSkip)
		return nil

	case decided.Action == domain.ActionEscalateHuman:
		conversation, err := s.conversations.FindOrCreate(ctx, customer.ID, step.Channel)
		if err != nil {
			return err
		}
		reason := decided.EscalationReason
		if reason == "" {
			reason = domain.ReasonAIUncertainty
		}
		if err := s.executor.Execute(ctx, conversation.ID, customer.ID, reason, decided.Reasoning); err != nil {
			return err
		}
		pass.report.Skipped++
		metrics.Agent().IncDunningSkipped(metrics.SkipReasonEscalated)
		return nil

	case decided.Message == "":
		pass.report.Skipped++
		metrics.Agent().IncDunningSkipped(metrics.SkipReasonDecisionSkip)
		return nil
	}

	conversation, err := s.conversations.FindOrCreate(ctx, customer.ID, step.Channel)
	if err != nil {
		return err
	}

	priority := queuedomain.PriorityUpcoming
	if diff > 0 {
		priority = queuedomain.PriorityOverdue
	}

	conversationID := conversation.ID
	item := &queuedomain.Item{
		ID:             s.genID.Generate(),
		OrgID:          charge.OrgID,
		CustomerID:     customer.ID,
		ChargeID:       &chargeID,
		ConversationID: &conversationID,
		Channel:        step.Channel,
		Content:        decided.Message,
		Status:         queuedomain.StatusPending,
		Priority:       priority,
		ScheduledFor:   pass.now,
		MaxAttempts:    queuedomain.DefaultMaxAttempts,
		CreatedAt:      pass.now,
		UpdatedAt:      pass.now,
	}

	// The notification log insert goes first: its unique (charge, step)
	// constraint is what keeps two concurrent runs from double-firing.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.dunning.InsertNotificationLog(ctx, tx, &dunningdomain.NotificationLog{
			ID:              s.genID.Generate(),
			ChargeID:        charge.ID,
			StepID:          step.ID,
			Channel:         step.Channel,
			Status:          "QUEUED",
			ScheduledFor:    pass.now,
			RenderedMessage: decided.Message,
			CreatedAt:       pass.now,
		}); err != nil {
			return err
		}
		return s.queue.Enqueue(ctx, tx, item)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			pass.report.Skipped++
			metrics.Agent().IncDunningSkipped(metrics.SkipReasonAlreadyFired)
			return nil
		}
		return err
	}

	pass.report.Queued++
	pass.remaining--
	metrics.Agent().IncDunningQueued(string(step.Channel))
	return nil
}

func (s *Service) ProcessInboundMessage(ctx context.Context, conversationID, messageID snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return conversationdomain.ErrInvalidOrganization
	}
	log := s.log.With(
		zap.String("org_id", orgID.String()),
		zap.String("conversation_id", conversationID.String()),
	)

	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		log.Debug("inbound on missing conversation, ignoring")
		return nil
	}
	if conversation.Status == conversationdomain.StatusResolvida {
		log.Debug("inbound on resolved conversation, staying silent")
		return nil
	}

	message, err := s.conversationRepo.FindMessageByID(ctx, s.db, messageID)
	if err != nil {
		return err
	}
	if message == nil {
		log.Debug("inbound message not found, ignoring")
		return nil
	}

	customer, err := s.customers.FindByID(ctx, s.db, orgID, conversation.CustomerID)
	if err != nil {
		return err
	}
	if customer == nil {
		log.Debug("inbound for missing customer, ignoring")
		return nil
	}

	cfg, err := s.agentConfigs.Get(ctx, s.db, orgID)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		_, err := s.conversations.Apply(ctx, conversationID, conversationdomain.EventAgentDisabled)
		return err
	}

	if _, err := s.conversations.Apply(ctx, conversationID, conversationdomain.EventDecisionStarted); err != nil {
		return err
	}

	ictx := s.buildInboundContext(ctx, customer, conversation, message)
	decided, err := s.provider.DecideInbound(ctx, ictx)
	if err != nil {
		return err
	}

	var maxAmount int64
	for _, c := range ictx.OpenCharges {
		if c.AmountCents > maxAmount {
			maxAmount = c.AmountCents
		}
	}

	// The safety net always runs, even over a decision that already
	// escalated; its trigger is the authoritative one in the audit log.
	check := escalation.ShouldForceEscalate(s.matcher, decided, message.Content, cfg, maxAmount)
	if !check.Escalate {
		failCheck, err := escalation.CheckConsecutiveFailures(ctx, s.db, s.queue, customer.ID, escalation.ConsecutiveFailureThreshold)
		if err != nil {
			log.Warn("consecutive failure check failed", zap.Error(err))
		} else if failCheck.Escalate {
			check = failCheck
		}
	}

	finalAction := decided.Action
	reason := decided.EscalationReason
	details := decided.Reasoning
	if check.Escalate {
		finalAction = domain.ActionEscalateHuman
		reason = check.Reason
		details = check.Details
	}
	if finalAction == domain.ActionEscalateHuman && reason == "" {
		reason = domain.ReasonAIUncertainty
	}

	s.writeDecisionLog(ctx, &decisionlogdomain.AgentDecisionLog{
		OrgID:          orgID,
		CustomerID:     customer.ID,
		ConversationID: &conversationID,
		Action:         string(finalAction),
		Reasoning:      decided.Reasoning,
		Confidence:     decided.Confidence,
		InputContext: datatypes.JSONMap{
			"channel":         string(conversation.Channel),
			"inbound_message": message.Content,
		},
		OutputMessage:    decided.Message,
		EscalationReason: string(reason),
	})

	if finalAction == domain.ActionEscalateHuman {
		return s.executor.Execute(ctx, conversationID, customer.ID, reason, details)
	}

	if decided.Message != "" {
		now := s.clock.Now()
		item := &queuedomain.Item{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			CustomerID:     customer.ID,
			ConversationID: &conversationID,
			Channel:        conversation.Channel,
			Content:        decided.Message,
			Status:         queuedomain.StatusPending,
			Priority:       queuedomain.PriorityReply,
			ScheduledFor:   now,
			MaxAttempts:    queuedomain.DefaultMaxAttempts,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.queue.Enqueue(ctx, s.db, item); err != nil {
			return err
		}
	}

	_, err = s.conversations.Apply(ctx, conversationID, conversationdomain.EventAutoHandled)
	return err
}

// writeDecisionLog appends the audit row. The trail is best-effort: a failed
// insert is logged loudly but never blocks the decision it records.
func (s *Service) writeDecisionLog(ctx context.Context, row *decisionlogdomain.AgentDecisionLog) {
	row.ID = s.genID.Generate()
	row.ExecutedAt = s.clock.Now()
	row.CreatedAt = row.ExecutedAt
	if err := s.decisionLogs.Insert(ctx, s.db, row); err != nil {
		s.log.Error("decision log insert failed",
			zap.String("action", row.Action),
			zap.Error(err),
		)
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
