// Package responder turns inbound messages into replies.
package responder

import (
	"context"

	"github.com/soyeahso/gewebridge/internal/config"
	"github.com/soyeahso/gewebridge/internal/domain"
	"github.com/soyeahso/gewebridge/internal/logging"
)

// Responder produces zero or more replies for a message.
type Responder interface {
	Respond(ctx context.Context, msg domain.InboundMessage) ([]domain.Reply, error)
}

// Echo sends text messages straight back.
type Echo struct{}

func (Echo) Respond(_ context.Context, msg domain.InboundMessage) ([]domain.Reply, error) {
	if msg.Type != domain.MessageText || msg.Content == "" {
		return nil, nil
	}
	return []domain.Reply{domain.TextReply(msg.Content)}, nil
}

// FromConfig returns a Command responder when a command is configured and
// Echo otherwise.
func FromConfig(cfg config.ResponderConfig, log *logging.Logger) Responder {
	if cfg.Command == "" {
		return Echo{}
	}
	return NewCommand(CommandConfig{
		Command: cfg.Command,
		Args:    cfg.Args,
		Timeout: secondsOr(cfg.TimeoutSeconds, config.DefaultResponderTimeout),
	}, log)
}
