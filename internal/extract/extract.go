// Package extract turns a finished dialogue turn into at most one
// structured memory candidate. All malformed-output repair (code fences,
// surrounding prose, stringly-typed numbers) lives here; callers only ever
// see a clean candidate or nothing.
package extract

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nidhogg/loreweaver/internal/memory"
)

// Candidate is one structured fact proposed for storage.
type Candidate struct {
	Summary    string
	Entities   []string
	Category   memory.Category
	Confidence float64
	NPC        *memory.NPCPayload
}

// Extractor analyzes a user/assistant exchange. A nil candidate with a nil
// error means the turn carried no new durable information.
type Extractor interface {
	Extract(ctx context.Context, userText, assistantText string) (*Candidate, error)
}

// rawCandidate mirrors the JSON the model is asked to emit. Confidence
// fields are RawMessage so numeric strings and garbage both survive
// decoding; resolution happens in parseConfidence.
type rawCandidate struct {
	Summary    string          `json:"summary"`
	Entities   []string        `json:"entities"`
	Type       string          `json:"type"`
	Confidence json.RawMessage `json:"confidence"`
	NPC        *rawNPC         `json:"npc"`
}

type rawNPC struct {
	Name             string          `json:"name"`
	Aliases          []string        `json:"aliases"`
	LastSeenLocation string          `json:"last_seen_location"`
	Intent           string          `json:"intent"`
	Relationship     string          `json:"relationship_to_player"`
	Confidence       json.RawMessage `json:"confidence"`
}

// parseConfidence resolves a raw JSON confidence value to a float. Accepts
// numbers and numeric strings; anything else reports !ok.
func parseConfidence(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if num, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return num, true
		}
	}
	return 0, false
}

// extractJSONObject cuts a JSON object out of raw model output: fences and
// surrounding prose are stripped by slicing from the first '{' to the last
// '}'.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseCandidate decodes raw model output into a Candidate. It returns
// (nil, false) for unparseable output, an empty summary, or an explicit
// "no new information" sentinel.
func ParseCandidate(text string) (*Candidate, bool) {
	obj, ok := extractJSONObject(text)
	if !ok {
		return nil, false
	}

	var raw rawCandidate
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, false
	}

	summary := strings.TrimSpace(raw.Summary)
	if summary == "" || strings.EqualFold(raw.Type, "none") {
		return nil, false
	}

	cand := &Candidate{
		Summary:  summary,
		Entities: memory.SanitizeEntities(raw.Entities),
		Category: memory.NormalizeCategory(raw.Type),
	}
	if conf, ok := parseConfidence(raw.Confidence); ok {
		cand.Confidence = conf
	}
	if raw.NPC != nil && strings.TrimSpace(raw.NPC.Name) != "" {
		npc := &memory.NPCPayload{
			Name:             raw.NPC.Name,
			Aliases:          raw.NPC.Aliases,
			LastSeenLocation: raw.NPC.LastSeenLocation,
			Intent:           raw.NPC.Intent,
			Relationship:     raw.NPC.Relationship,
		}
		if conf, ok := parseConfidence(raw.NPC.Confidence); ok {
			npc.Confidence = &conf
		}
		cand.NPC = npc
	}
	return cand, true
}
