package memory

import (
	"strings"
	"time"
)

// Category tags a stored fact.
type Category string

const (
	CategoryNPC          Category = "npc"
	CategoryThreat       Category = "threat"
	CategoryGoal         Category = "goal"
	CategoryItem         Category = "item"
	CategoryLocation     Category = "location"
	CategoryRelationship Category = "relationship"
	CategoryWorldState   Category = "world_state"
	CategoryOther        Category = "other"
)

// NormalizeCategory folds free-form extractor output onto the known tag set.
// Unrecognized values map to CategoryOther.
func NormalizeCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryNPC:
		return CategoryNPC
	case CategoryThreat:
		return CategoryThreat
	case CategoryGoal:
		return CategoryGoal
	case CategoryItem:
		return CategoryItem
	case CategoryLocation:
		return CategoryLocation
	case CategoryRelationship:
		return CategoryRelationship
	case CategoryWorldState:
		return CategoryWorldState
	default:
		return CategoryOther
	}
}

// Record is a durable world fact. Immutable after creation and owned
// exclusively by the Store that created it.
type Record struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Entities  []string  `json:"entities"`
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Vector    []float32 `json:"-"`

	// NPC carries the structured payload that produced this record, kept so
	// the snapshot index can be rebuilt by replaying the log.
	NPC *NPCPayload `json:"npc,omitempty"`
}

// entityBlacklist holds generic names that carry no world information.
var entityBlacklist = map[string]bool{
	"player": true,
}

// SanitizeEntities drops blank and blacklisted names and dedupes the rest
// case-insensitively, preserving first-seen spelling and order.
func SanitizeEntities(entities []string) []string {
	if len(entities) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(entities))
	var cleaned []string
	for _, e := range entities {
		name := strings.TrimSpace(e)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if entityBlacklist[key] || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, name)
	}
	return cleaned
}
