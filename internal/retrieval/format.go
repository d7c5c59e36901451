package retrieval

import (
	"fmt"
	"strings"

	"github.com/nidhogg/loreweaver/internal/memory"
)

const (
	// DefaultFactsCharBudget bounds the rendered world-facts block.
	DefaultFactsCharBudget = 800
	// DefaultNPCCardCount bounds how many NPC cards are rendered.
	DefaultNPCCardCount = 2
	// DefaultNPCCardLen truncates each rendered NPC card line.
	DefaultNPCCardLen = 350
)

// FormatWorldFacts renders records as a compact fact list for prompt
// injection. Trailing lines are dropped until the block fits charBudget;
// the header line always survives. Returns "" for no records.
func FormatWorldFacts(records []*memory.Record, charBudget int) string {
	if len(records) == 0 {
		return ""
	}
	if charBudget <= 0 {
		charBudget = DefaultFactsCharBudget
	}

	lines := []string{"World Facts (use to stay consistent; do not contradict):"}
	for _, rec := range records {
		line := fmt.Sprintf("- [%s] %s", rec.Category, strings.TrimSpace(rec.Summary))
		if len(rec.Entities) > 0 {
			line += fmt.Sprintf(" (entities: %s)", strings.Join(rec.Entities, ", "))
		}
		lines = append(lines, line)
	}

	out := strings.Join(lines, "\n")
	if len(out) <= charBudget {
		return out
	}
	keep := lines[:1]
	for _, line := range lines[1:] {
		if len(strings.Join(append(keep, line), "\n")) > charBudget {
			break
		}
		keep = append(keep, line)
	}
	return strings.Join(keep, "\n")
}

// FormatNPCCards renders up to maxCards snapshots as one-line cards, each
// truncated to cardLen characters. Returns "" for no snapshots.
func FormatNPCCards(snaps []*memory.NPCSnapshot, maxCards, cardLen int) string {
	if len(snaps) == 0 {
		return ""
	}
	if maxCards <= 0 {
		maxCards = DefaultNPCCardCount
	}
	if cardLen <= 0 {
		cardLen = DefaultNPCCardLen
	}
	if len(snaps) > maxCards {
		snaps = snaps[:maxCards]
	}

	cards := []string{"NPC Cards:"}
	for _, snap := range snaps {
		loc := snap.LastSeenLocation
		if loc == "" {
			loc = "unknown"
		}
		intent := snap.Intent
		if intent == "" {
			intent = "unknown"
		}
		line := fmt.Sprintf("- %s: rel=%s; last_seen=%s; intent=%s",
			snap.DisplayName, snap.Relationship, loc, intent)
		// Character cap, never splitting a rune.
		if runes := []rune(line); len(runes) > cardLen {
			line = string(runes[:cardLen])
		}
		cards = append(cards, line)
	}
	return strings.Join(cards, "\n")
}

// MergeContext joins the NPC card block and the fact block, cards first.
// Either side may be empty; "" means there is no context this turn.
func MergeContext(npcCards, facts string) string {
	switch {
	case npcCards != "" && facts != "":
		return npcCards + "\n\n" + facts
	case npcCards != "":
		return npcCards
	default:
		return facts
	}
}
