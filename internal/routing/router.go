// Package routing connects chat channels to the conversation service.
package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/helix/internal/agent"
	"github.com/soyeahso/helix/internal/channel"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
)

// Responder answers one chat message. *agent.Service satisfies it.
type Responder interface {
	HandleMessage(ctx context.Context, sessionID, message string, current []domain.SequenceStep) *agent.ProcessResult
}

// Router sends inbound channel messages through the assistant and posts the
// replies back to the originating chat.
type Router struct {
	channels    *channel.Registry
	responder   Responder
	scope       string // "per-sender" | "global"
	turnTimeout time.Duration
	log         *logging.Logger
}

// NewRouter creates a message router.
func NewRouter(channels *channel.Registry, responder Responder, scope string, log *logging.Logger) *Router {
	if scope == "" {
		scope = ScopePerSender
	}
	return &Router{
		channels:    channels,
		responder:   responder,
		scope:       scope,
		turnTimeout: 5 * time.Minute,
		log:         log.Sub("routing"),
	}
}

// HandleInbound runs one turn for msg and replies through its channel.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	key := ResolveSessionKey(msg, r.scope)
	r.log.Info().
		Str("channel", msg.ChannelID).
		Str("from", msg.From).
		Str("session", key.String()).
		Msg("routing inbound message")

	if r.responder == nil {
		r.log.Warn().Msg("no assistant configured, dropping message")
		return
	}

	ch, ok := r.channels.Get(msg.ChannelID)
	if !ok {
		r.log.Error().Str("channel", msg.ChannelID).Msg("channel not found for reply")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.turnTimeout)
	defer cancel()

	res := r.responder.HandleMessage(ctx, key.String(), msg.Body, nil)
	if res.Status == agent.StatusError {
		r.log.Warn().
			Str("session", key.String()).
			Str("kind", string(res.ErrorKind)).
			Str("error", res.Error).
			Msg("turn failed")
	}
	if res.ChatResponse == "" {
		return
	}

	reply := domain.OutboundMessage{
		ChannelID: msg.ChannelID,
		To:        replyTarget(msg),
		Body:      res.ChatResponse,
	}
	if err := ch.Send(ctx, reply); err != nil {
		r.log.Error().Err(err).
			Str("channel", msg.ChannelID).
			Str("to", reply.To).
			Msg("failed to send reply")
		return
	}

	r.log.Debug().
		Str("channel", msg.ChannelID).
		Str("to", reply.To).
		Str("action", res.Action()).
		Msg("reply sent")
}

// Wire registers the router as the message handler on every channel. Each
// message is handled on its own goroutine; the service serializes turns of
// the same session.
func (r *Router) Wire(ctx context.Context) {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			go r.HandleInbound(ctx, msg)
		})
		r.log.Debug().Str("channel", id).Msg("wired message handler")
	}
}

// replyTarget determines where to send the response.
func replyTarget(msg domain.InboundMessage) string {
	if msg.ChatType == domain.ChatTypeDM {
		return msg.From
	}
	return msg.ChatID
}

// SendTo sends a message to a specific channel.
func (r *Router) SendTo(ctx context.Context, channelID, target, body string) error {
	ch, ok := r.channels.Get(channelID)
	if !ok {
		return fmt.Errorf("channel not found: %s", channelID)
	}
	return ch.Send(ctx, domain.OutboundMessage{
		ChannelID: channelID,
		To:        target,
		Body:      body,
	})
}
