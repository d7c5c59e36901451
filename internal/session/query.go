package session

import (
	"strings"

	"github.com/nidhogg/loreweaver/internal/history"
)

// BuildRetrievalQuery produces a short, labeled retrieval query from the
// recent scene and the player's new action. The labels keep the embedding
// anchored on what is happening now rather than on stale scene text.
func BuildRetrievalQuery(recentScene []history.Entry, action string) string {
	var lastNarration, lastIntent string
	for i := len(recentScene) - 1; i >= 0; i-- {
		entry := recentScene[i]
		if lastNarration == "" && entry.Role == history.RoleAssistant {
			lastNarration = entry.Content
		}
		if lastIntent == "" && entry.Role == history.RoleUser {
			lastIntent = entry.Content
		}
		if lastNarration != "" && lastIntent != "" {
			break
		}
	}

	parts := []string{
		"current scene:", lastNarration,
		"latest player intent:", lastIntent,
		"new action:", action,
	}
	return strings.Join(parts, " ")
}

// EstimateTokens approximates the token cost of text when the provider does
// not report counts: roughly four characters per token plus five tokens of
// per-message padding. With no text to measure it charges a flat 10, the
// same cost a failed tokenizer pass is assigned.
func EstimateTokens(text string) int {
	if text == "" {
		return 10
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n + 5
}
