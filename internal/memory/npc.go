package memory

import (
	"strings"
	"time"
)

// Relationship classifies an NPC's stance toward the player.
type Relationship string

const (
	RelationshipHostile  Relationship = "hostile"
	RelationshipFriendly Relationship = "friendly"
	RelationshipNeutral  Relationship = "neutral"
	RelationshipUnknown  Relationship = "unknown"
)

// relationshipRank orders stances by how alarming they are. Merges only
// ever move a snapshot up this order, so a known hostile is never silently
// downgraded.
var relationshipRank = map[Relationship]int{
	RelationshipHostile:  3,
	RelationshipFriendly: 2,
	RelationshipNeutral:  1,
	RelationshipUnknown:  0,
}

const (
	// maxHistoryLines caps a snapshot's rolling event history.
	maxHistoryLines = 10
	// maxHistoryLineLen truncates each history line.
	maxHistoryLineLen = 160
)

// NPCPayload is the structured NPC fact attached to an extraction candidate.
// Confidence is a pointer so a non-numeric value in the raw extractor output
// can be represented as absent and leave the snapshot untouched.
type NPCPayload struct {
	Name             string   `json:"name"`
	Aliases          []string `json:"aliases,omitempty"`
	LastSeenLocation string   `json:"last_seen_location,omitempty"`
	Intent           string   `json:"intent,omitempty"`
	Relationship     string   `json:"relationship_to_player,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
}

// NPCSnapshot is the merged, current view of one recurring NPC. It is a
// materialized view over npc-category records: mutated only by the merge
// path and reconstructible from the log.
type NPCSnapshot struct {
	DisplayName      string       `json:"name"`
	Aliases          []string     `json:"aliases"`
	LastSeenLocation string       `json:"last_seen_location,omitempty"`
	LastSeenTime     time.Time    `json:"last_seen_time"`
	Intent           string       `json:"intent,omitempty"`
	Relationship     Relationship `json:"relationship_to_player"`
	Confidence       float64      `json:"confidence"`
	History          []string     `json:"history"`
}

// CanonicalName case-folds a name and collapses internal whitespace,
// producing the snapshot index key.
func CanonicalName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// newSnapshot returns a snapshot with default fields for a first sighting.
func newSnapshot(displayName string) *NPCSnapshot {
	return &NPCSnapshot{
		DisplayName:  displayName,
		Relationship: RelationshipUnknown,
	}
}

// merge folds an incoming payload and its source record into the snapshot.
//
// Field semantics differ deliberately: location and intent are
// last-write-wins, relationship and confidence are monotonic (rank upgrade
// and max respectively). eventTime stamps LastSeenTime so replaying the
// log reproduces the live result.
func (s *NPCSnapshot) merge(payload *NPCPayload, summary string, eventTime time.Time) {
	canonical := CanonicalName(payload.Name)

	existing := make(map[string]bool, len(s.Aliases))
	for _, a := range s.Aliases {
		existing[CanonicalName(a)] = true
	}
	for _, alias := range payload.Aliases {
		key := CanonicalName(alias)
		if key == "" || key == canonical || existing[key] {
			continue
		}
		existing[key] = true
		s.Aliases = append(s.Aliases, alias)
	}

	if loc := strings.TrimSpace(payload.LastSeenLocation); loc != "" {
		s.LastSeenLocation = loc
		s.LastSeenTime = eventTime
	}

	if intent := strings.TrimSpace(payload.Intent); intent != "" {
		s.Intent = intent
	}

	rel := Relationship(strings.ToLower(strings.TrimSpace(payload.Relationship)))
	if rank, known := relationshipRank[rel]; known && rank >= relationshipRank[s.Relationship] {
		s.Relationship = rel
	}

	if payload.Confidence != nil && *payload.Confidence > s.Confidence {
		s.Confidence = *payload.Confidence
	}

	if summary != "" {
		line := truncateRunes(summary, maxHistoryLineLen)
		s.History = append(s.History, line)
		if len(s.History) > maxHistoryLines {
			s.History = s.History[len(s.History)-maxHistoryLines:]
		}
	}
}

// clone returns an independent copy safe to read after the store's lock is
// released.
func (s *NPCSnapshot) clone() *NPCSnapshot {
	c := *s
	c.Aliases = append([]string(nil), s.Aliases...)
	c.History = append([]string(nil), s.History...)
	return &c
}

// truncateRunes caps s at max characters, never splitting a rune.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// composeText builds the pipe-joined text representation used to embed a
// snapshot for relevance scoring. Empty fields are omitted; an empty result
// means the caller should fall back to the query's own vector.
func (s *NPCSnapshot) composeText() string {
	parts := make([]string, 0, 3+len(s.Aliases))
	if s.DisplayName != "" {
		parts = append(parts, s.DisplayName)
	}
	parts = append(parts, s.Aliases...)
	if s.Intent != "" {
		parts = append(parts, s.Intent)
	}
	if s.LastSeenLocation != "" {
		parts = append(parts, s.LastSeenLocation)
	}
	return strings.Join(parts, " | ")
}
