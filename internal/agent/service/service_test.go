package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/cobranca/internal/agent/decision"
	"github.com/smallbiznis/cobranca/internal/agent/domain"
	"github.com/smallbiznis/cobranca/internal/agent/escalation"
	configdomain "github.com/smallbiznis/cobranca/internal/agentconfig/domain"
	agentconfigrepository "github.com/smallbiznis/cobranca/internal/agentconfig/repository"
	"github.com/smallbiznis/cobranca/internal/channel"
	chargedomain "github.com/smallbiznis/cobranca/internal/charge/domain"
	chargerepository "github.com/smallbiznis/cobranca/internal/charge/repository"
	"github.com/smallbiznis/cobranca/internal/clock"
	appconfig "github.com/smallbiznis/cobranca/internal/config"
	conversationdomain "github.com/smallbiznis/cobranca/internal/conversation/domain"
	conversationrepository "github.com/smallbiznis/cobranca/internal/conversation/repository"
	conversationservice "github.com/smallbiznis/cobranca/internal/conversation/service"
	customerdomain "github.com/smallbiznis/cobranca/internal/customer/domain"
	customerrepository "github.com/smallbiznis/cobranca/internal/customer/repository"
	decisionlogdomain "github.com/smallbiznis/cobranca/internal/decisionlog/domain"
	decisionlogrepository "github.com/smallbiznis/cobranca/internal/decisionlog/repository"
	dunningdomain "github.com/smallbiznis/cobranca/internal/dunning/domain"
	dunningrepository "github.com/smallbiznis/cobranca/internal/dunning/repository"
	dunningservice "github.com/smallbiznis/cobranca/internal/dunning/service"
	queuedomain "github.com/smallbiznis/cobranca/internal/messagequeue/domain"
	queuerepository "github.com/smallbiznis/cobranca/internal/messagequeue/repository"
	"github.com/smallbiznis/cobranca/internal/orgcontext"
	taskdomain "github.com/smallbiznis/cobranca/internal/task/domain"
	taskrepository "github.com/smallbiznis/cobranca/internal/task/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testNow is noon in São Paulo, well inside any working-hours window and far
// from a date boundary in either zone.
var testNow = time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)

type env struct {
	db    *gorm.DB
	node  *snowflake.Node
	clk   *clock.FakeClock
	orgID snowflake.ID

	customers     customerdomain.Repository
	charges       chargedomain.Repository
	dunning       dunningdomain.Repository
	queue         queuedomain.Repository
	tasks         taskdomain.Repository
	decisionLogs  decisionlogdomain.Repository
	agentConfigs  configdomain.Repository
	conversations conversationdomain.Service
	convRepo      conversationdomain.Repository

	svc domain.Service
}

func setupEnv(t *testing.T, provider domain.Provider) *env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&chargedomain.Charge{},
		&dunningdomain.Rule{},
		&dunningdomain.Step{},
		&dunningdomain.NotificationLog{},
		&conversationdomain.Conversation{},
		&conversationdomain.Message{},
		&queuedomain.Item{},
		&taskdomain.CollectionTask{},
		&decisionlogdomain.AgentDecisionLog{},
		&configdomain.AgentConfig{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(testNow)
	log := zap.NewNop()

	customers := customerrepository.Provide()
	charges := chargerepository.Provide()
	dunningRepo := dunningrepository.Provide()
	queue := queuerepository.Provide()
	tasks := taskrepository.Provide()
	decisionLogs := decisionlogrepository.Provide()
	agentConfigs := agentconfigrepository.Provide()
	convRepo := conversationrepository.Provide()

	conversations := conversationservice.New(conversationservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  convRepo,
	})

	holder, err := appconfig.NewDunningConfigHolder()
	require.NoError(t, err)
	dunningSvc := dunningservice.New(dunningservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Repo:    dunningRepo,
		Presets: holder,
	})

	executor := escalation.NewExecutor(escalation.ExecutorParams{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Conversations: conversations,
		Tasks:         tasks,
	})

	svc := New(Params{
		DB:               db,
		Log:              log,
		GenID:            node,
		Clock:            clk,
		Cfg:              appconfig.Config{SchedulerBatchSize: 50},
		Provider:         provider,
		Matcher:          escalation.DefaultMatcher(),
		Executor:         executor,
		Customers:        customers,
		Charges:          charges,
		Dunning:          dunningRepo,
		DunningSvc:       dunningSvc,
		Queue:            queue,
		Tasks:            tasks,
		DecisionLogs:     decisionLogs,
		AgentConfigs:     agentConfigs,
		Conversations:    conversations,
		ConversationRepo: convRepo,
	})

	return &env{
		db:            db,
		node:          node,
		clk:           clk,
		orgID:         node.Generate(),
		customers:     customers,
		charges:       charges,
		dunning:       dunningRepo,
		queue:         queue,
		tasks:         tasks,
		decisionLogs:  decisionLogs,
		agentConfigs:  agentConfigs,
		conversations: conversations,
		convRepo:      convRepo,
		svc:           svc,
	}
}

func (e *env) ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), e.orgID)
}

func (e *env) enableAgent(t *testing.T, mutate func(cfg *configdomain.AgentConfig)) {
	t.Helper()
	cfg := configdomain.Default(e.orgID)
	cfg.Enabled = true
	cfg.CreatedAt = testNow
	cfg.UpdatedAt = testNow
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, e.agentConfigs.Upsert(context.Background(), e.db, &cfg))
}

func (e *env) seedCustomer(t *testing.T) *customerdomain.Customer {
	t.Helper()
	customer := &customerdomain.Customer{
		ID:            e.node.Generate(),
		OrgID:         e.orgID,
		Name:          "João Ferreira",
		Email:         "joao@example.com",
		Phone:         "+55 11 91234-5678",
		WhatsappPhone: "+55 11 91234-5678",
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	require.NoError(t, e.customers.Insert(context.Background(), e.db, customer))
	return customer
}

func (e *env) seedCharge(t *testing.T, customerID snowflake.ID, dueDate time.Time, status chargedomain.ChargeStatus) *chargedomain.Charge {
	t.Helper()
	charge := &chargedomain.Charge{
		ID:          e.node.Generate(),
		OrgID:       e.orgID,
		CustomerID:  customerID,
		Description: "Mensalidade setembro",
		AmountCents: 19900,
		DueDate:     dueDate,
		Status:      status,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	require.NoError(t, e.charges.Insert(context.Background(), e.db, charge))
	return charge
}

func (e *env) count(t *testing.T, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Raw(query, args...).Scan(&n).Error)
	return n
}

// failingProvider errors for one charge and answers normally for the rest.
type failingProvider struct {
	failChargeID string
}

func (p *failingProvider) DecideCollection(ctx context.Context, c domain.CollectionContext) (domain.Decision, error) {
	if c.Charge.ID == p.failChargeID {
		return domain.Decision{}, errors.New("provider exploded")
	}
	return domain.Decision{
		Action:     domain.ActionSendCollection,
		Message:    "mensagem de cobrança",
		Confidence: 0.9,
	}, nil
}

func (p *failingProvider) DecideInbound(ctx context.Context, c domain.InboundContext) (domain.Decision, error) {
	return domain.Decision{}, errors.New("provider exploded")
}

// fixedProvider always answers with the same decision.
type fixedProvider struct {
	decision domain.Decision
}

func (p *fixedProvider) DecideCollection(ctx context.Context, c domain.CollectionContext) (domain.Decision, error) {
	return p.decision, nil
}

func (p *fixedProvider) DecideInbound(ctx context.Context, c domain.InboundContext) (domain.Decision, error) {
	return p.decision, nil
}

func guardedFallback() domain.Provider {
	return decision.NewGuarded(nil, zap.NewNop())
}

func TestProcessScheduledDunning_DisabledAgentDoesNothing(t *testing.T) {
	e := setupEnv(t, guardedFallback())
	customer := e.seedCustomer(t)
	e.seedCharge(t, customer.ID, testNow.AddDate(0, 0, 5), chargedomain.ChargeStatusPending)

	report, err := e.svc.ProcessScheduledDunning(e.ctx())
	require.NoError(t, err)
	assert.Zero(t, report.Queued)
	assert.Zero(t, report.Skipped)
	assert.Zero(t, report.Errors)
	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM message_queue_items`))
}

func TestProcessScheduledDunning_BeforeDueStepFiresExactlyOnce(t *testing.T) {
	e := setupEnv(t, guardedFallback())
	e.enableAgent(t, nil)
	customer := e.seedCustomer(t)
	charge := e.seedCharge(t, customer.ID, testNow.AddDate(0, 0, 5), chargedomain.ChargeStatusPending)

	report, err := e.svc.ProcessScheduledDunning(e.ctx())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Queued)
	assert.Zero(t, report.Errors)

	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM notification_logs WHERE charge_id = ?`, charge.ID))
	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM agent_decision_logs`))

	item, err := e.queue.FetchDispatchable(context.Background(), e.db, testNow, 10)
	require.NoError(t, err)
	require.Len(t, item, 1)
	assert.Equal(t, channel.Email, item[0].Channel)
	assert.Equal(t, queuedomain.PriorityUpcoming, item[0].Priority)
	assert.Equal(t, queuedomain.StatusPending, item[0].Status)
	assert.NotEmpty(t, item[0].Content)

	// Same-day re-run queues nothing new and calls no provider again.
	report, err = e.svc.ProcessScheduledDunning(e.ctx())
	require.NoError(t, err)
	assert.Zero(t, report.Queued)
	assert.GreaterOrEqual(t, report.Skipped, 1)
	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM notification_logs WHERE charge_id = ?`, charge.ID))
	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM message_queue_items`))
	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM agent_decision_logs`))
}

func TestProcessScheduledDunning_OverdueChargeFlipsAndQueuesPriority(t *testing.T) {
	e := setupEnv(t, guardedFallback())
	e.enableAgent(t, nil)
	customer := e.seedCustomer(t)
	charge := e.seedCharge(t, customer.ID, testNow.AddDate(0, 0, -3), chargedomain.ChargeStatusPending)

	report, err := e.svc.ProcessScheduledDunning(e.ctx())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Queued)

	updated, err := e.charges.FindByID(context.Background(), e.db, e.orgID, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, chargedomain.ChargeStatusOverdue, updated.Status)

	items, err := e.queue.FetchDispatchable(context.Background(), e.db, testNow, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, channel.SMS, items[0].Channel)
	assert.Equal(t, queuedomain.PriorityOverdue, items[0].Priority)
}

func TestProcessScheduledDunning_DailyCapStopsEnqueueing(t *testing.T) {
	e := setupEnv(t, guardedFallback())
	e.enableAgent(t, func(cfg *configdomain.AgentConfig) {
		cfg.MaxDailyMessages = 1
	})

	first := e.seedCustomer(t)
	second := e.seedCustomer(t)
	e.seedCharge(t, first.ID, testNow.AddDate(0, 0, 5), chargedomain.ChargeStatusPending)
	e.seedCharge(t, second.ID, testNow.AddDate(0, 0, 5), chargedomain.ChargeStatusPending)

	report, err := e.svc.ProcessScheduledDunning(e.ctx())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Queued)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM message_queue_items`))
}

func TestProcessScheduledDunning_CapAlreadyReachedQueuesNothing(t *testing.T) {
	e := setupEnv(t, guardedFallback())
	e.enableAgent(t, func(cfg *configdomain.AgentConfig) {
		cfg.MaxDailyMessages = 5
	})
	customer := e.seedCustomer(t)
	e.seedCharge(t, customer.ID, testNow.AddDate(0, 0, 5), chargedomain.ChargeStatusPending)

	// Five messages already queued today.
	for i := 0; i < 5; i++ {
		require.NoError(t, e.queue.Enqueue(context.Background(), e.db, &queuedomain.Item{
			ID:           e.node.Generate(),
			OrgID:        e.orgID,
			CustomerID:   customer.ID,
			Channel:      channel.WhatsApp,
			Content:      "mensagem",
			Status:       queuedomain.StatusSent,
			ScheduledFor: testNow,
			MaxAttempts:  queuedomain.DefaultMaxAttempts,
			CreatedAt:    testNow,
			UpdatedAt:    testNow,
		}))
	}

	report, err := e.svc.ProcessScheduledDunning(e.ctx())
	require.NoError(t, err)
	assert.Zero(t, report.Queued)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, int64(5), e.count(t, `SELECT COUNT(1) FROM message_queue_items`))
}

func TestProcessScheduledDunning_DecisionSkipQueuesNothing(t *testing.T) {
	provider := decision.NewGuarded(&fixedProvider{decision: domain.Decision{
		Action:     domain.ActionSkip,
		Confidence: 0.9,
		Reasoning:  "cliente negociou ontem",
	}}, zap.NewNop())
	e := setupEnv(t, provider)
	e.enableAgent(t, nil)
	customer := e.seedCustomer(t)
	e.seedCharge(t, customer.ID, testNow.AddDate(0, 0, 5), chargedomain.ChargeStatusPending)

	report, err := e.svc.ProcessScheduledDunning(e.ctx())
	require.NoError(t, err)
	assert.Zero(t, report.Queued)
	assert.Equal(t, 1, report.Skipped)

	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM message_queue_items`))
	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM notification_logs`))
	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM agent_decision_logs WHERE action = ?`, string(domain.ActionSkip)))
}

func TestProcessScheduledDunning_EscalationParksConversation(t *testing.T) {
	provider := decision.NewGuarded(&fixedProvider{decision: domain.Decision{
		Action:           domain.ActionEscalateHuman,
		Confidence:       0.9,
		Reasoning:        "caso sensível",
		EscalationReason: domain.ReasonHighValue,
	}}, zap.NewNop())
	e := setupEnv(t, provider)
	e.enableAgent(t, nil)
	customer := e.seedCustomer(t)
	e.seedCharge(t, customer.ID, testNow.AddDate(0, 0, 5), chargedomain.ChargeStatusPending)

	report, err := e.svc.ProcessScheduledDunning(e.ctx())
	require.NoError(t, err)
	assert.Zero(t, report.Queued)
	assert.Equal(t, 1, report.Skipped)

	conversation, err := e.convRepo.FindOpenByCustomerChannel(context.Background(), e.db, e.orgID, customer.ID, channel.Email)
	require.NoError(t, err)
	require.NotNil(t, conversation)
	assert.Equal(t, conversationdomain.StatusPendenteHumano, conversation.Status)

	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM collection_tasks WHERE priority = ?`, string(taskdomain.PriorityCritica)))
	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM message_queue_items`))
}

func TestProcessScheduledDunning_PerChargeErrorsDoNotAbortBatch(t *testing.T) {
	failing := &failingProvider{}
	e := setupEnv(t, failing)
	e.enableAgent(t, nil)
	broken := e.seedCustomer(t)
	healthy := e.seedCustomer(t)
	brokenCharge := e.seedCharge(t, broken.ID, testNow.AddDate(0, 0, 5), chargedomain.ChargeStatusPending)
	e.seedCharge(t, healthy.ID, testNow.AddDate(0, 0, 5), chargedomain.ChargeStatusPending)
	failing.failChargeID = brokenCharge.ID.String()

	report, err := e.svc.ProcessScheduledDunning(e.ctx())
	assert.Error(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Queued)
	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM message_queue_items`))
}

func (e *env) seedConversationWithInbound(t *testing.T, customerID snowflake.ID, text string) (*conversationdomain.Conversation, *conversationdomain.Message) {
	t.Helper()
	conversation, err := e.conversations.FindOrCreate(e.ctx(), customerID, channel.WhatsApp)
	require.NoError(t, err)

	message := &conversationdomain.Message{
		ConversationID: conversation.ID,
		Sender:         conversationdomain.SenderCustomer,
		Content:        text,
		Channel:        channel.WhatsApp,
	}
	require.NoError(t, e.conversations.AppendMessage(e.ctx(), message))
	return conversation, message
}

func TestProcessInboundMessage_DisabledAgentHandsOff(t *testing.T) {
	e := setupEnv(t, guardedFallback())
	customer := e.seedCustomer(t)
	conversation, message := e.seedConversationWithInbound(t, customer.ID, "oi, recebi a cobrança")

	require.NoError(t, e.svc.ProcessInboundMessage(e.ctx(), conversation.ID, message.ID))

	updated, err := e.conversations.Get(e.ctx(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, conversationdomain.StatusPendenteHumano, updated.Status)
	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM agent_decision_logs`))
}

func TestProcessInboundMessage_LegalKeywordOverridesConfidentReply(t *testing.T) {
	provider := decision.NewGuarded(&fixedProvider{decision: domain.Decision{
		Action:     domain.ActionRespondCustomer,
		Message:    "Claro, posso ajudar!",
		Confidence: 0.97,
	}}, zap.NewNop())
	e := setupEnv(t, provider)
	e.enableAgent(t, nil)
	customer := e.seedCustomer(t)
	conversation, message := e.seedConversationWithInbound(t, customer.ID, "vou acionar meu advogado sobre essa cobrança")

	require.NoError(t, e.svc.ProcessInboundMessage(e.ctx(), conversation.ID, message.ID))

	// The safety net wins: no auto-reply, one audit row with the
	// authoritative trigger, conversation parked for a human.
	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM message_queue_items`))
	assert.Equal(t, int64(1), e.count(t,
		`SELECT COUNT(1) FROM agent_decision_logs WHERE action = ? AND escalation_reason = ?`,
		string(domain.ActionEscalateHuman), string(domain.ReasonLegalThreat)))
	assert.Equal(t, int64(1), e.count(t, `SELECT COUNT(1) FROM collection_tasks WHERE priority = ?`, string(taskdomain.PriorityCritica)))

	updated, err := e.conversations.Get(e.ctx(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, conversationdomain.StatusPendenteHumano, updated.Status)
}

func TestProcessInboundMessage_ConfidentReplyIsEnqueued(t *testing.T) {
	provider := decision.NewGuarded(&fixedProvider{decision: domain.Decision{
		Action:     domain.ActionRespondCustomer,
		Message:    "Podemos parcelar em até 3 vezes.",
		Confidence: 0.97,
	}}, zap.NewNop())
	e := setupEnv(t, provider)
	e.enableAgent(t, nil)
	customer := e.seedCustomer(t)
	conversation, message := e.seedConversationWithInbound(t, customer.ID, "consigo parcelar esse valor?")

	require.NoError(t, e.svc.ProcessInboundMessage(e.ctx(), conversation.ID, message.ID))

	items, err := e.queue.FetchDispatchable(context.Background(), e.db, testNow, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, queuedomain.PriorityReply, items[0].Priority)
	assert.Equal(t, "Podemos parcelar em até 3 vezes.", items[0].Content)
	require.NotNil(t, items[0].ConversationID)
	assert.Equal(t, conversation.ID, *items[0].ConversationID)

	updated, err := e.conversations.Get(e.ctx(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, conversationdomain.StatusAberta, updated.Status)
}

func TestProcessInboundMessage_ProviderFailureEscalates(t *testing.T) {
	e := setupEnv(t, guardedFallback())
	e.enableAgent(t, nil)
	customer := e.seedCustomer(t)
	conversation, message := e.seedConversationWithInbound(t, customer.ID, "oi")

	require.NoError(t, e.svc.ProcessInboundMessage(e.ctx(), conversation.ID, message.ID))

	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM message_queue_items`))
	assert.Equal(t, int64(1), e.count(t,
		`SELECT COUNT(1) FROM agent_decision_logs WHERE action = ? AND escalation_reason = ?`,
		string(domain.ActionEscalateHuman), string(domain.ReasonAIUncertainty)))
}

func TestProcessInboundMessage_ResolvedConversationStaysSilent(t *testing.T) {
	provider := decision.NewGuarded(&fixedProvider{decision: domain.Decision{
		Action:     domain.ActionRespondCustomer,
		Message:    "Claro, posso ajudar!",
		Confidence: 0.97,
	}}, zap.NewNop())
	e := setupEnv(t, provider)
	e.enableAgent(t, nil)
	customer := e.seedCustomer(t)
	conversation, message := e.seedConversationWithInbound(t, customer.ID, "obrigada, já resolvi")

	_, err := e.conversations.Apply(e.ctx(), conversation.ID, conversationdomain.EventHumanResolved)
	require.NoError(t, err)

	require.NoError(t, e.svc.ProcessInboundMessage(e.ctx(), conversation.ID, message.ID))

	// A human closed the thread: no decision, no audit row, no reply.
	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM agent_decision_logs`))
	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM message_queue_items`))

	updated, err := e.conversations.Get(e.ctx(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, conversationdomain.StatusResolvida, updated.Status)
}

func TestProcessInboundMessage_MissingConversationIsNoOp(t *testing.T) {
	e := setupEnv(t, guardedFallback())
	e.enableAgent(t, nil)

	require.NoError(t, e.svc.ProcessInboundMessage(e.ctx(), e.node.Generate(), e.node.Generate()))
	assert.Zero(t, e.count(t, `SELECT COUNT(1) FROM agent_decision_logs`))
}
