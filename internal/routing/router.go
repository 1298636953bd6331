// Package routing connects inbound provider messages to the responder and
// sends the replies back through the delivery pipeline.
package routing

import (
	"context"

	"github.com/soyeahso/gewebridge/internal/domain"
	"github.com/soyeahso/gewebridge/internal/hooks"
	"github.com/soyeahso/gewebridge/internal/logging"
	"github.com/soyeahso/gewebridge/internal/responder"
)

// Deliverer sends one reply and handles its own failures.
type Deliverer interface {
	Deliver(ctx context.Context, reply domain.Reply, target domain.DeliveryTarget)
}

// Router routes inbound messages to the responder and replies to the
// pipeline.
type Router struct {
	responder responder.Responder
	deliverer Deliverer
	hooks     *hooks.Manager
	log       *logging.Logger
}

// NewRouter creates a message router. hm may be nil.
func NewRouter(r responder.Responder, d Deliverer, hm *hooks.Manager, log *logging.Logger) *Router {
	return &Router{
		responder: r,
		deliverer: d,
		hooks:     hm,
		log:       log.Sub("router"),
	}
}

// HandleInbound produces replies for msg and delivers them in order to the
// chat it came from.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	log := r.log.With("id", msg.ID)
	log.Info().
		Str("from", msg.FromUserID).
		Str("sender", msg.ActualUserID).
		Bool("group", msg.IsGroup).
		Str("type", string(msg.Type)).
		Msg("routing inbound message")

	if r.hooks != nil {
		r.hooks.Emit(ctx, hooks.EventMessageReceived, map[string]any{
			"id":     msg.ID,
			"from":   msg.FromUserID,
			"sender": msg.ActualUserID,
			"group":  msg.IsGroup,
			"type":   string(msg.Type),
		})
	}

	replies, err := r.responder.Respond(ctx, msg)
	if err != nil {
		log.Error().Err(err).Msg("responder failed")
		return
	}
	if len(replies) == 0 {
		log.Debug().Msg("no reply")
		return
	}

	target := domain.NewTarget(&msg)
	for _, reply := range replies {
		r.deliverer.Deliver(ctx, reply, target)
	}
}
