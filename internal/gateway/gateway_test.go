package gateway

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/loreweaver/internal/embedding"
	"github.com/nidhogg/loreweaver/internal/provider"
	"github.com/nidhogg/loreweaver/internal/retrieval"
	"github.com/nidhogg/loreweaver/internal/session"
	"go.uber.org/zap"
)

type fakeAdapter struct {
	platform string
	handler  MessageHandler

	mu   sync.Mutex
	sent []*OutboundMessage
	done chan struct{}
}

func newFakeAdapter(platform string) *fakeAdapter {
	return &fakeAdapter{platform: platform, done: make(chan struct{}, 8)}
}

func (a *fakeAdapter) Platform() string              { return a.platform }
func (a *fakeAdapter) Connect(context.Context) error { return nil }
func (a *fakeAdapter) OnMessage(h MessageHandler)    { a.handler = h }
func (a *fakeAdapter) Close() error                  { return nil }

func (a *fakeAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	a.mu.Lock()
	a.sent = append(a.sent, msg)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

type fakeGenerator struct{ reply string }

func (g *fakeGenerator) Chat(context.Context, *provider.ChatRequest) (*provider.ChatResponse, error) {
	return &provider.ChatResponse{Content: g.reply}, nil
}

func newTestDispatcher(t *testing.T, g *Gateway, reply string) *session.Manager {
	t.Helper()
	logger := zap.NewNop()
	cfg := session.DefaultConfig()
	cfg.ContextEnabled = false
	m := session.NewManager(cfg, embedding.NewHashProvider(16),
		retrieval.DefaultBonusTable(), &fakeGenerator{reply: reply}, nil, nil, logger)
	NewDispatcher(g, m, logger)
	return m
}

func TestDispatcherRoutesReplyToOrigin(t *testing.T) {
	logger := zap.NewNop()
	g := NewGateway(logger)
	adapter := newFakeAdapter("discord")
	g.Register(adapter)
	newTestDispatcher(t, g, "You enter the tavern.")

	adapter.handler(&InboundMessage{
		Platform:  "discord",
		ChannelID: "chan-1",
		UserID:    "u1",
		Content:   "go to the tavern",
		ReplyTo:   "chan-1",
	})

	select {
	case <-adapter.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reply never sent")
	}

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.sent) != 1 {
		t.Fatalf("sent %d messages", len(adapter.sent))
	}
	out := adapter.sent[0]
	if out.ChannelID != "chan-1" || out.Content != "You enter the tavern." {
		t.Errorf("outbound = %+v", out)
	}
}

func TestDispatcherSessionPerChannel(t *testing.T) {
	logger := zap.NewNop()
	g := NewGateway(logger)
	adapter := newFakeAdapter("slack")
	g.Register(adapter)
	m := newTestDispatcher(t, g, "ok")

	for _, ch := range []string{"a", "b"} {
		adapter.handler(&InboundMessage{Platform: "slack", ChannelID: ch, Content: "hi"})
	}
	for i := 0; i < 2; i++ {
		select {
		case <-adapter.done:
		case <-time.After(2 * time.Second):
			t.Fatal("replies never sent")
		}
	}

	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "slack:a" || keys[1] != "slack:b" {
		t.Errorf("session keys = %v", keys)
	}
}

func TestSendUnknownPlatform(t *testing.T) {
	g := NewGateway(zap.NewNop())
	err := g.Send(context.Background(), &OutboundMessage{Platform: "telegram"})
	if err == nil {
		t.Fatal("expected error for unregistered platform")
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 2000); len(got) != 1 || got[0] != "short" {
		t.Errorf("splitMessage(short) = %v", got)
	}

	long := strings.Repeat("line of narration here\n", 200)
	chunks := splitMessage(long, 2000)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	var total int
	for _, c := range chunks {
		if len(c) > 2000 {
			t.Errorf("chunk exceeds limit: %d chars", len(c))
		}
		total += len(c)
	}
	if total != len(long) {
		t.Errorf("splitting lost content: %d != %d", total, len(long))
	}
}

func TestInboundSessionKey(t *testing.T) {
	msg := &InboundMessage{Platform: "discord", ChannelID: "123"}
	if msg.SessionKey() != "discord:123" {
		t.Errorf("SessionKey() = %q", msg.SessionKey())
	}
}
