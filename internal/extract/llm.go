package extract

import (
	"context"
	"fmt"

	"github.com/nidhogg/loreweaver/internal/provider"
	"go.uber.org/zap"
)

const extractorSystemPrompt = `You are a memory analyst for a tabletop-style adventure.
Given one player/narrator exchange, decide whether it established a durable world fact.
Output strict JSON with keys:
  summary (one factual sentence)
  entities (list of proper names; never include the player)
  type (one of: npc, threat, goal, item, location, relationship, world_state, other, none)
  confidence (0.0-1.0)
  npc (only when type is "npc": {name, aliases, last_seen_location, intent, relationship_to_player, confidence})
If nothing durable happened, return {"type": "none"}.
Return ONLY the JSON object. No commentary.`

// LLMExtractor implements Extractor with a chat-completion call through
// the provider router.
type LLMExtractor struct {
	router *provider.Router
	model  string
	logger *zap.Logger
}

// NewLLMExtractor creates an extractor bound to the given router and model.
func NewLLMExtractor(router *provider.Router, model string, logger *zap.Logger) *LLMExtractor {
	return &LLMExtractor{router: router, model: model, logger: logger}
}

// Extract asks the model to classify the exchange and parses its output.
// Unparseable output and the "none" sentinel both yield (nil, nil); only
// transport failures surface as errors.
func (e *LLMExtractor) Extract(ctx context.Context, userText, assistantText string) (*Candidate, error) {
	userBlock := fmt.Sprintf("Player said: %s\n\nNarrator responded: %s", userText, assistantText)

	resp, err := e.router.Chat(ctx, &provider.ChatRequest{
		Model: e.model,
		Messages: []provider.Message{
			{Role: "system", Content: extractorSystemPrompt},
			{Role: "user", Content: userBlock},
		},
		MaxTokens:   512,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	cand, ok := ParseCandidate(resp.Content)
	if !ok {
		e.logger.Debug("no memory candidate in turn")
		return nil, nil
	}
	return cand, nil
}
