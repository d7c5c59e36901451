// Package session orchestrates one conversation: it assembles retrieval
// context, drives the generation call, and feeds finished turns back into
// the memory store.
//
// Error policy: generation failure is the only error a caller sees.
// Retrieval, extraction and storage are side channels — when they fail the
// turn proceeds (or completes) without them.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/loreweaver/internal/events"
	"github.com/nidhogg/loreweaver/internal/extract"
	"github.com/nidhogg/loreweaver/internal/history"
	"github.com/nidhogg/loreweaver/internal/memory"
	"github.com/nidhogg/loreweaver/internal/provider"
	"github.com/nidhogg/loreweaver/internal/retrieval"
	"go.uber.org/zap"
)

// DefaultSystemPrompt is the anchor prompt seeded into every new session.
const DefaultSystemPrompt = "You are the dungeon master. " +
	"You describe the world to the player in second person present tense. " +
	"You end each response with a question to the player."

// Generator issues one chat-completion call. *provider.Router satisfies it.
type Generator interface {
	Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// Config tunes one session.
type Config struct {
	Model        string
	SystemPrompt string

	// MaxHistoryTokens is the history window budget: the model context
	// size minus a buffer reserved for the reply.
	MaxHistoryTokens int
	MaxReplyTokens   int
	Temperature      float64
	TopP             float64

	// ContextEnabled decides at construction time whether retrieval
	// context is built and extraction runs. There is no runtime probing
	// of the generator's capabilities.
	ContextEnabled bool

	// AcceptThreshold is the minimum extraction confidence (exclusive)
	// for a candidate to be stored.
	AcceptThreshold float64
	// DedupeWrites forwards the dedupe check to MemoryStore.Write.
	DedupeWrites bool

	RetrieveFacts int // facts per turn
	RetrieveNPCs  int // NPC cards per turn
}

// DefaultConfig mirrors the standard game setup: a 32k context with a 2k
// reply buffer, four facts and two NPC cards per turn.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:     DefaultSystemPrompt,
		MaxHistoryTokens: 32768 - 2048,
		MaxReplyTokens:   512,
		Temperature:      0.7,
		TopP:             0.9,
		ContextEnabled:   true,
		AcceptThreshold:  0.6,
		RetrieveFacts:    4,
		RetrieveNPCs:     2,
	}
}

// Session owns the working memory of one conversation: its history window,
// memory store, and ranker. One writer at a time; the mutex serializes
// turns arriving from different transports for the same session.
type Session struct {
	ID        string
	CreatedAt time.Time

	cfg       Config
	window    *history.Window
	store     *memory.Store
	ranker    *retrieval.Ranker
	generator Generator
	extractor extract.Extractor
	publisher events.Publisher
	logger    *zap.Logger

	mu sync.Mutex
}

// New creates a session with its anchor prompt already seeded. extractor
// and publisher may be nil; retrieval and extraction are then skipped for
// their respective halves of the turn.
func New(id string, cfg Config, store *memory.Store, ranker *retrieval.Ranker,
	generator Generator, extractor extract.Extractor, publisher events.Publisher,
	logger *zap.Logger) *Session {

	window := history.NewWindow(cfg.MaxHistoryTokens, history.RoleSystem,
		cfg.SystemPrompt, EstimateTokens(cfg.SystemPrompt))

	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		cfg:       cfg,
		window:    window,
		store:     store,
		ranker:    ranker,
		generator: generator,
		extractor: extractor,
		publisher: publisher,
		logger:    logger.With(zap.String("session", id)),
	}
}

// Window exposes the history window for inspection endpoints.
func (s *Session) Window() *history.Window { return s.window }

// Store exposes the memory store for inspection endpoints.
func (s *Session) Store() *memory.Store { return s.store }

// HandleUserMessage runs one full turn and returns the narrator's reply.
//
// The user turn is committed to the window before the generation call is
// issued, so a timeout cannot lose the player's message; the assistant
// turn is recorded only on success.
func (s *Session) HandleUserMessage(ctx context.Context, userText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var contextBlock string
	if s.cfg.ContextEnabled {
		contextBlock = s.buildContextBlock(ctx, userText)
	}

	s.window.Append(history.RoleUser, userText, EstimateTokens(userText))

	messages := s.assembleMessages(contextBlock)
	resp, err := s.generator.Chat(ctx, &provider.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		MaxTokens:   s.cfg.MaxReplyTokens,
		Temperature: s.cfg.Temperature,
		TopP:        s.cfg.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	reply := resp.Content
	if reply == "" {
		reply = "[No response generated]"
	}

	replyTokens := resp.Usage.CompletionTokens
	if replyTokens == 0 {
		replyTokens = EstimateTokens(reply)
	}
	s.window.Append(history.RoleAssistant, reply, replyTokens)

	var memoryID string
	if s.cfg.ContextEnabled && s.extractor != nil {
		memoryID = s.analyzeAndStore(ctx, userText, reply)
	}

	s.publishTurn(ctx, userText, reply, memoryID)
	return reply, nil
}

// buildContextBlock retrieves ranked facts and NPC cards and merges them
// into one injectable block. Any failure returns "" — retrieval problems
// never block a turn.
func (s *Session) buildContextBlock(ctx context.Context, userText string) string {
	query := BuildRetrievalQuery(s.window.BuildContext(), userText)

	var facts string
	records, err := s.ranker.WeightedRetrieve(ctx, query, s.cfg.RetrieveFacts)
	if err != nil {
		s.logger.Warn("fact retrieval failed", zap.Error(err))
	} else {
		facts = retrieval.FormatWorldFacts(records, retrieval.DefaultFactsCharBudget)
	}

	var cards string
	snaps, err := s.store.RelevantNPCSnapshots(ctx, query, s.cfg.RetrieveNPCs)
	if err != nil {
		s.logger.Warn("npc retrieval failed", zap.Error(err))
	} else {
		cards = retrieval.FormatNPCCards(snaps, retrieval.DefaultNPCCardCount, retrieval.DefaultNPCCardLen)
	}

	return retrieval.MergeContext(cards, facts)
}

// assembleMessages converts the window's active selection to provider
// messages, splicing the transient context block in immediately after the
// anchor. The block is never recorded into the window.
func (s *Session) assembleMessages(contextBlock string) []provider.Message {
	entries := s.window.BuildContext()
	messages := make([]provider.Message, 0, len(entries)+1)
	for i, e := range entries {
		messages = append(messages, provider.Message{Role: string(e.Role), Content: e.Content})
		if i == 0 && contextBlock != "" {
			messages = append(messages, provider.Message{Role: "system", Content: contextBlock})
		}
	}
	return messages
}

// analyzeAndStore runs extraction on the finished turn and writes the
// candidate when it clears the acceptance threshold. Fail-open throughout:
// every failure path just means no memory this turn. Returns the written
// record's ID, if any.
func (s *Session) analyzeAndStore(ctx context.Context, userText, reply string) string {
	cand, err := s.extractor.Extract(ctx, userText, reply)
	if err != nil {
		s.logger.Warn("extraction failed", zap.Error(err))
		return ""
	}
	if cand == nil || cand.Confidence <= s.cfg.AcceptThreshold {
		return ""
	}

	id, err := s.store.Write(ctx, memory.WriteRequest{
		Summary:     cand.Summary,
		Entities:    cand.Entities,
		Category:    cand.Category,
		NPC:         cand.NPC,
		DedupeCheck: s.cfg.DedupeWrites,
	})
	if err != nil {
		s.logger.Warn("memory write failed", zap.Error(err))
		return ""
	}
	s.logger.Debug("memory stored",
		zap.String("id", id),
		zap.String("category", string(cand.Category)))
	return id
}

// publishTurn emits a turn event when a publisher is configured.
// Best-effort only.
func (s *Session) publishTurn(ctx context.Context, userText, reply, memoryID string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, &events.TurnEvent{
		SessionID: s.ID,
		UserText:  userText,
		Reply:     reply,
		MemoryID:  memoryID,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.logger.Warn("turn event publish failed", zap.Error(err))
	}
}
