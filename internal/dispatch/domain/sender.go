package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/cobranca/internal/channel"
)

// Result is the outcome of one delivery attempt. Error carries the
// provider's failure text for the queue item's audit trail.
type Result struct {
	Success       bool
	ProviderMsgID string
	Error         string
}

// Sender delivers one message on one channel. Implementations normalize
// nothing; destinations arrive already cleaned up by the dispatcher.
type Sender interface {
	Send(ctx context.Context, destination, content, subject string) Result
}

// Registry routes queue items to the sender registered for their channel.
type Registry struct {
	senders map[channel.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[channel.Channel]Sender)}
}

func (r *Registry) Register(ch channel.Channel, s Sender) {
	r.senders[ch] = s
}

func (r *Registry) For(ch channel.Channel) (Sender, bool) {
	s, ok := r.senders[ch]
	return s, ok
}

var ErrNoSender = errors.New("no_sender_for_channel")

// NormalizePhone strips formatting, keeping digits and a leading plus.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
			continue
		}
		if c == '+' && i == 0 {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
