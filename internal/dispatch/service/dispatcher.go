package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	configdomain "github.com/smallbiznis/cobranca/internal/agentconfig/domain"
	"github.com/smallbiznis/cobranca/internal/channel"
	"github.com/smallbiznis/cobranca/internal/clock"
	conversationdomain "github.com/smallbiznis/cobranca/internal/conversation/domain"
	customerdomain "github.com/smallbiznis/cobranca/internal/customer/domain"
	"github.com/smallbiznis/cobranca/internal/dispatch/domain"
	queuedomain "github.com/smallbiznis/cobranca/internal/messagequeue/domain"
	"github.com/smallbiznis/cobranca/internal/observability/metrics"
	"github.com/smallbiznis/cobranca/internal/orgcontext"
	taskdomain "github.com/smallbiznis/cobranca/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultBatchSize = 50
	// sendDedupWindow guards against double-logging one physical send in
	// the conversation. Exactly-once delivery itself comes from claiming.
	sendDedupWindow = 60 * time.Second

	emailSubject = "Notificação de cobrança"

	contentClipLen = 200
)

// Report tallies one dispatch pass.
type Report struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Registry *domain.Registry

	Queue            queuedomain.Repository
	Customers        customerdomain.Repository
	Tasks            taskdomain.Repository
	AgentConfigs     configdomain.Repository
	Conversations    conversationdomain.Service
	ConversationRepo conversationdomain.Repository
}

// Dispatcher drains the outbound queue. Items are claimed one at a time
// with a guarded status update, so concurrent dispatchers never double-send.
type Dispatcher struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	registry *domain.Registry

	queue            queuedomain.Repository
	customers        customerdomain.Repository
	tasks            taskdomain.Repository
	agentConfigs     configdomain.Repository
	conversations    conversationdomain.Service
	conversationRepo conversationdomain.Repository
}

func New(p Params) *Dispatcher {
	return &Dispatcher{
		db:               p.DB,
		log:              p.Log.Named("dispatch.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		registry:         p.Registry,
		queue:            p.Queue,
		customers:        p.Customers,
		tasks:            p.Tasks,
		agentConfigs:     p.AgentConfigs,
		conversations:    p.Conversations,
		conversationRepo: p.ConversationRepo,
	}
}

func (d *Dispatcher) ProcessPendingQueue(ctx context.Context, batch int) (Report, error) {
	if batch <= 0 {
		batch = defaultBatchSize
	}

	now := d.clock.Now()
	items, err := d.queue.FetchDispatchable(ctx, d.db, now, batch)
	if err != nil {
		return Report{}, err
	}

	var report Report
	var errs error
	for _, item := range items {
		sent, attempted, err := d.dispatchItem(ctx, item)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("item %s: %w", item.ID, err))
			continue
		}
		if !attempted {
			continue
		}
		report.Processed++
		if sent {
			report.Sent++
		} else {
			report.Failed++
		}
	}

	if report.Processed > 0 {
		d.log.Info("dispatch pass finished",
			zap.Int("processed", report.Processed),
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
		)
	}
	return report, errs
}

// dispatchItem attempts one delivery. It returns attempted=false when the
// item was left untouched (outside the window, or claimed by another
// worker); such items keep their attempt count and retry later.
func (d *Dispatcher) dispatchItem(ctx context.Context, item *queuedomain.Item) (sent, attempted bool, err error) {
	cfg, err := d.agentConfigs.Get(ctx, d.db, item.OrgID)
	if err != nil {
		return false, false, err
	}

	hours := domain.WorkingHours{
		Start:    cfg.WorkingHoursStart,
		End:      cfg.WorkingHoursEnd,
		Location: cfg.Location(),
	}
	now := d.clock.Now()
	if !hours.Contains(now) {
		return false, false, nil
	}

	claimed, err := d.queue.Claim(ctx, d.db, item.ID, now)
	if err != nil {
		return false, false, err
	}
	if !claimed {
		return false, false, nil
	}

	log := d.log.With(
		zap.String("item_id", item.ID.String()),
		zap.String("channel", string(item.Channel)),
	)

	customer, err := d.customers.FindByID(ctx, d.db, item.OrgID, item.CustomerID)
	if err != nil {
		return false, true, err
	}
	if customer == nil {
		return false, true, d.failAttempt(ctx, item, "cliente não encontrado")
	}

	destination, subject := resolveDestination(item.Channel, customer)
	if destination == "" {
		return false, true, d.failAttempt(ctx, item, fmt.Sprintf("cliente sem destino para o canal %s", item.Channel))
	}

	sender, ok := d.registry.For(item.Channel)
	if !ok {
		return false, true, d.failAttempt(ctx, item, domain.ErrNoSender.Error())
	}

	result := sender.Send(ctx, destination, item.Content, subject)
	if !result.Success {
		log.Warn("delivery attempt failed", zap.String("provider_error", result.Error))
		return false, true, d.failAttempt(ctx, item, result.Error)
	}

	if err := d.queue.MarkSent(ctx, d.db, item.ID, result.ProviderMsgID, d.clock.Now()); err != nil {
		return false, true, err
	}
	metrics.Agent().IncDispatchAttempt(string(item.Channel), metrics.DispatchOutcomeSent)

	d.recordOutbound(ctx, item, result.ProviderMsgID)
	return true, true, nil
}

// failAttempt records the failure and, when the item just dead-lettered,
// raises the one follow-up task a human needs to see.
func (d *Dispatcher) failAttempt(ctx context.Context, item *queuedomain.Item, reason string) error {
	status, err := d.queue.MarkFailed(ctx, d.db, item.ID, reason)
	if err != nil {
		return err
	}
	metrics.Agent().IncDispatchAttempt(string(item.Channel), metrics.DispatchOutcomeFailed)

	if status != queuedomain.StatusDeadLetter {
		return nil
	}
	metrics.Agent().IncDeadLetter(string(item.Channel))

	now := d.clock.Now()
	task := &taskdomain.CollectionTask{
		ID:         d.genID.Generate(),
		OrgID:      item.OrgID,
		CustomerID: item.CustomerID,
		ChargeID:   item.ChargeID,
		Title:      fmt.Sprintf("[FALHA ENVIO] Mensagem não entregue após %d tentativas", item.MaxAttempts),
		Description: fmt.Sprintf("Canal: %s\nErro: %s\n\nConteúdo:\n%s",
			item.Channel, reason, clip(item.Content, contentClipLen)),
		Status:    taskdomain.StatusPendente,
		Priority:  taskdomain.PriorityAlta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.tasks.Insert(ctx, d.db, task); err != nil {
		d.log.Error("dead letter task insert failed",
			zap.String("item_id", item.ID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// recordOutbound mirrors the sent message into the conversation. Best
// effort; the send already happened.
func (d *Dispatcher) recordOutbound(ctx context.Context, item *queuedomain.Item, providerMsgID string) {
	if item.ConversationID == nil {
		return
	}
	conversationID := *item.ConversationID
	octx := orgcontext.WithOrgID(ctx, item.OrgID)

	since := d.clock.Now().Add(-sendDedupWindow)
	existing, err := d.conversationRepo.FindRecentOutbound(octx, d.db, conversationID, item.Content, since)
	if err != nil {
		d.log.Warn("outbound de-dup lookup failed", zap.Error(err))
		return
	}
	if existing != nil {
		if existing.ExternalID == "" && providerMsgID != "" {
			if err := d.conversationRepo.SetMessageExternalID(octx, d.db, existing.ID, providerMsgID); err != nil {
				d.log.Warn("outbound external id update failed", zap.Error(err))
			}
		}
		return
	}

	message := &conversationdomain.Message{
		ConversationID: conversationID,
		Sender:         conversationdomain.SenderAI,
		Content:        item.Content,
		Channel:        item.Channel,
		ExternalID:     providerMsgID,
	}
	if err := d.conversations.AppendMessage(octx, message); err != nil {
		d.log.Warn("outbound message record failed", zap.Error(err))
	}
}

func resolveDestination(ch channel.Channel, customer *customerdomain.Customer) (destination, subject string) {
	switch ch {
	case channel.WhatsApp:
		phone := customer.WhatsappPhone
		if phone == "" {
			phone = customer.Phone
		}
		return domain.NormalizePhone(phone), ""
	case channel.SMS:
		return domain.NormalizePhone(customer.Phone), ""
	case channel.Email:
		return domain.NormalizeEmail(customer.Email), emailSubject
	}
	return "", ""
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
