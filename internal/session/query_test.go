package session

import (
	"strings"
	"testing"

	"github.com/nidhogg/loreweaver/internal/history"
)

func TestBuildRetrievalQuery(t *testing.T) {
	scene := []history.Entry{
		{Role: history.RoleSystem, Content: "You are the dungeon master."},
		{Role: history.RoleUser, Content: "I draw my sword"},
		{Role: history.RoleAssistant, Content: "The guard steps back."},
		{Role: history.RoleUser, Content: "I demand passage"},
		{Role: history.RoleAssistant, Content: "He eyes you warily."},
	}
	q := BuildRetrievalQuery(scene, "attack the guard")

	for _, want := range []string{
		"current scene: He eyes you warily.",
		"latest player intent: I demand passage",
		"new action: attack the guard",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
	if strings.Contains(q, "The guard steps back") {
		t.Error("query picked a stale narration instead of the latest")
	}
}

func TestBuildRetrievalQueryEmptyScene(t *testing.T) {
	q := BuildRetrievalQuery(nil, "look around")
	if !strings.Contains(q, "new action: look around") {
		t.Errorf("query = %q", q)
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 10}, // flat fallback cost for unmeasurable input
		{"ab", 6},
		{"abcd", 6},
		{strings.Repeat("x", 40), 15},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}
