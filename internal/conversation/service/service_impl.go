package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/channel"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/conversation/domain"
	"github.com/smallbiznis/cobranca/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("conversation.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) FindOrCreate(ctx context.Context, customerID snowflake.ID, ch channel.Channel) (*domain.Conversation, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	existing, err := s.repo.FindOpenByCustomerChannel(ctx, s.db, orgID, customerID, ch)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	conversation := &domain.Conversation{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		CustomerID:    customerID,
		Channel:       ch,
		Status:        domain.StatusAberta,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Conversation, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) AppendMessage(ctx context.Context, message *domain.Message) error {
	if message.ID == 0 {
		message.ID = s.genID.Generate()
	}
	if message.ContentType == "" {
		message.ContentType = "text"
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.clock.Now()
	}
	if err := s.repo.InsertMessage(ctx, s.db, message); err != nil {
		return err
	}
	return s.repo.TouchLastMessage(ctx, s.db, message.ConversationID, message.CreatedAt)
}

func (s *Service) Apply(ctx context.Context, conversationID snowflake.ID, event domain.Event) (domain.Status, error) {
	var final domain.Status
	// Retry once when a concurrent transition moved the row between read
	// and update.
	for attempt := 0; attempt < 2; attempt++ {
		conversation, err := s.repo.FindByID(ctx, s.db, conversationID)
		if err != nil {
			return "", err
		}
		if conversation == nil {
			return "", domain.ErrNotFound
		}

		next := domain.NextState(conversation.Status, event)
		final = next
		if next == conversation.Status {
			return final, nil
		}

		updated, err := s.repo.UpdateStatus(ctx, s.db, conversationID, conversation.Status, next)
		if err != nil {
			return "", err
		}
		if updated {
			return final, nil
		}
	}

	s.log.Warn("conversation transition contended",
		zap.String("conversation_id", conversationID.String()),
		zap.String("event", string(event)),
	)
	return final, nil
}
