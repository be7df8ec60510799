package escalation

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/smallbiznis/cobranca/internal/agent/domain"
	conversationdomain "github.com/smallbiznis/cobranca/internal/conversation/domain"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/observability/metrics"
	"github.com/smallbiznis/cobranca/internal/orgcontext"
	taskdomain "github.com/smallbiznis/cobranca/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const holdingMessage = "Obrigada pelo contato. Vou transferir você para um especialista da nossa equipe que poderá ajudá-lo(a) melhor. Em breve alguém entrará em contato."

type ExecutorParams struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Conversations conversationdomain.Service
	Tasks         taskdomain.Repository
}

// Executor performs the human handoff: park the conversation, open a
// critical task, leave an internal note and a holding message. Steps run
// best-effort in sequence; a failed step is logged and the rest still run.
type Executor struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	conversations conversationdomain.Service
	tasks         taskdomain.Repository
}

func NewExecutor(p ExecutorParams) *Executor {
	return &Executor{
		db:            p.DB,
		log:           p.Log.Named("agent.escalation"),
		genID:         p.GenID,
		clock:         p.Clock,
		conversations: p.Conversations,
		tasks:         p.Tasks,
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	conversationID snowflake.ID,
	customerID snowflake.ID,
	reason agentdomain.EscalationReason,
	details string,
) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return conversationdomain.ErrInvalidOrganization
	}

	log := e.log.With(
		zap.String("conversation_id", conversationID.String()),
		zap.String("reason", string(reason)),
	)
	metrics.Agent().IncEscalation(string(reason))

	conversation, err := e.conversations.Get(ctx, conversationID)
	if err != nil || conversation == nil {
		log.Warn("escalation on missing conversation", zap.Error(err))
		return err
	}

	if _, err := e.conversations.Apply(ctx, conversationID, conversationdomain.EventEscalated); err != nil {
		log.Warn("conversation handoff transition failed", zap.Error(err))
	}

	now := e.clock.Now()
	task := &taskdomain.CollectionTask{
		ID:         e.genID.Generate(),
		OrgID:      orgID,
		CustomerID: customerID,
		Title:      fmt.Sprintf("[ESCALAÇÃO] %s: %s", reason, clip(details, 100)),
		Description: fmt.Sprintf("Escalação automática da IA.\n\nMotivo: %s\nDetalhes: %s\n\nConversation ID: %s",
			reason, details, conversationID),
		Status:    taskdomain.StatusPendente,
		Priority:  taskdomain.PriorityCritica,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.tasks.Insert(ctx, e.db, task); err != nil {
		log.Warn("escalation task insert failed", zap.Error(err))
	}

	internal := &conversationdomain.Message{
		ConversationID: conversationID,
		Sender:         conversationdomain.SenderSystem,
		Content:        fmt.Sprintf("⚠️ Escalação automática: %s\n%s", reason, details),
		Channel:        conversation.Channel,
		IsInternal:     true,
	}
	if err := e.conversations.AppendMessage(ctx, internal); err != nil {
		log.Warn("escalation internal note failed", zap.Error(err))
	}

	visible := &conversationdomain.Message{
		ConversationID: conversationID,
		Sender:         conversationdomain.SenderAI,
		Content:        holdingMessage,
		Channel:        conversation.Channel,
		IsInternal:     false,
	}
	if err := e.conversations.AppendMessage(ctx, visible); err != nil {
		log.Warn("escalation holding message failed", zap.Error(err))
	}

	log.Info("escalated to human")
	return nil
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
