package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/nidhogg/loreweaver/internal/memory"
)

func TestFormatWorldFacts(t *testing.T) {
	records := []*memory.Record{
		{Summary: "the bridge is out", Category: memory.CategoryWorldState},
		{Summary: "Varek carries a dagger", Category: memory.CategoryThreat, Entities: []string{"Varek"}},
	}

	out := FormatWorldFacts(records, 0)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "World Facts") {
		t.Errorf("missing header: %q", lines[0])
	}
	if lines[1] != "- [world_state] the bridge is out" {
		t.Errorf("unexpected fact line: %q", lines[1])
	}
	if lines[2] != "- [threat] Varek carries a dagger (entities: Varek)" {
		t.Errorf("unexpected entity line: %q", lines[2])
	}
}

func TestFormatWorldFactsEmpty(t *testing.T) {
	if out := FormatWorldFacts(nil, 800); out != "" {
		t.Errorf("expected empty string, got %q", out)
	}
}

func TestFormatWorldFactsCharBudgetKeepsHeader(t *testing.T) {
	var records []*memory.Record
	for i := 0; i < 20; i++ {
		records = append(records, &memory.Record{
			Summary:  strings.Repeat("long fact ", 10),
			Category: memory.CategoryOther,
		})
	}

	out := FormatWorldFacts(records, 200)
	if len(out) > 200 {
		t.Errorf("output length %d exceeds budget 200", len(out))
	}
	if !strings.HasPrefix(out, "World Facts") {
		t.Error("header must always survive trimming")
	}

	// Budget smaller than any fact line still keeps the header alone.
	tiny := FormatWorldFacts(records, len("World Facts (use to stay consistent; do not contradict):")+1)
	if !strings.HasPrefix(tiny, "World Facts") || strings.Count(tiny, "\n") != 0 {
		t.Errorf("expected bare header, got %q", tiny)
	}
}

func TestFormatNPCCards(t *testing.T) {
	snaps := []*memory.NPCSnapshot{
		{DisplayName: "Mira", Relationship: memory.RelationshipFriendly,
			LastSeenLocation: "the Gilded Swan", Intent: "tends the inn"},
		{DisplayName: "Varek", Relationship: memory.RelationshipHostile},
		{DisplayName: "Extra", Relationship: memory.RelationshipNeutral},
	}

	out := FormatNPCCards(snaps, 2, 0)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 cards (cap), got %d lines", len(lines))
	}
	if lines[1] != "- Mira: rel=friendly; last_seen=the Gilded Swan; intent=tends the inn" {
		t.Errorf("unexpected card: %q", lines[1])
	}
	if lines[2] != "- Varek: rel=hostile; last_seen=unknown; intent=unknown" {
		t.Errorf("missing-field card wrong: %q", lines[2])
	}
}

func TestFormatNPCCardsTruncatesLongCards(t *testing.T) {
	snaps := []*memory.NPCSnapshot{{
		DisplayName:  "Mira",
		Relationship: memory.RelationshipFriendly,
		Intent:       strings.Repeat("plotting ", 100),
	}}

	out := FormatNPCCards(snaps, 2, 350)
	for _, line := range strings.Split(out, "\n")[1:] {
		if len(line) > 350 {
			t.Errorf("card length %d exceeds cap", len(line))
		}
	}
}

func TestFormatNPCCardsTruncatesOnRuneBoundary(t *testing.T) {
	snaps := []*memory.NPCSnapshot{{
		DisplayName:  "Mira",
		Relationship: memory.RelationshipFriendly,
		Intent:       strings.Repeat("密谋", 200),
	}}

	out := FormatNPCCards(snaps, 1, 350)
	card := strings.Split(out, "\n")[1]
	if !utf8.ValidString(card) {
		t.Fatalf("card is not valid UTF-8: %q", card)
	}
	if n := utf8.RuneCountInString(card); n != 350 {
		t.Errorf("card has %d characters, want 350", n)
	}
}

func TestMergeContext(t *testing.T) {
	cases := []struct {
		name, cards, facts, want string
	}{
		{"both", "cards", "facts", "cards\n\nfacts"},
		{"cards only", "cards", "", "cards"},
		{"facts only", "", "facts", "facts"},
		{"neither", "", "", ""},
	}
	for _, tc := range cases {
		if got := MergeContext(tc.cards, tc.facts); got != tc.want {
			t.Errorf("%s: MergeContext = %q, want %q", tc.name, got, tc.want)
		}
	}
}
