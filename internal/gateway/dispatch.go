package gateway

import (
	"context"
	"time"

	"github.com/nidhogg/loreweaver/internal/session"
	"go.uber.org/zap"
)

const turnTimeout = 3 * time.Minute

// Dispatcher runs game turns for inbound platform messages. Turns execute
// on their own goroutine so a slow generation never blocks the adapter's
// event loop; the session's own lock serializes turns within one channel.
type Dispatcher struct {
	gateway  *Gateway
	sessions *session.Manager
	logger   *zap.Logger
}

// NewDispatcher wires the gateway's inbound handler to the session manager.
func NewDispatcher(g *Gateway, sessions *session.Manager, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{gateway: g, sessions: sessions, logger: logger}
	g.SetHandler(d.handle)
	return d
}

func (d *Dispatcher) handle(msg *InboundMessage) {
	go d.runTurn(msg)
}

func (d *Dispatcher) runTurn(msg *InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	sess := d.sessions.Get(msg.SessionKey())
	reply, err := sess.HandleUserMessage(ctx, msg.Content)
	if err != nil {
		d.logger.Error("turn failed",
			zap.String("session", msg.SessionKey()), zap.Error(err))
		reply = "The narrator pauses, momentarily lost for words. Try that again."
	}

	out := &OutboundMessage{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		Content:   reply,
		ReplyTo:   msg.ReplyTo,
	}
	if err := d.gateway.Send(ctx, out); err != nil {
		d.logger.Error("reply send failed",
			zap.String("platform", msg.Platform),
			zap.String("channel", msg.ChannelID), zap.Error(err))
	}
}
