package sender

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/smallbiznis/cobranca/internal/dispatch/domain"
	"go.uber.org/zap"
)

// LogSender is the development sender: it logs the message and reports
// success with a synthetic provider ID.
type LogSender struct {
	log     *zap.Logger
	channel string
}

func NewLogSender(log *zap.Logger, channel string) *LogSender {
	return &LogSender{
		log:     log.Named("dispatch.sender"),
		channel: channel,
	}
}

func (s *LogSender) Send(ctx context.Context, destination, content, subject string) domain.Result {
	s.log.Info("message sent",
		zap.String("channel", s.channel),
		zap.String("destination", destination),
		zap.String("subject", subject),
		zap.Int("content_len", len(content)),
	)
	return domain.Result{
		Success:       true,
		ProviderMsgID: fmt.Sprintf("log-%s", uuid.NewString()),
	}
}
