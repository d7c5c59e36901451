// Package memory stores durable world facts for one conversation session.
//
// The record log is append-only and immutable; a derived index of NPC
// snapshots is maintained on the write path and can be rebuilt from the
// log at any time. Searches are full linear scans: the working set is
// hundreds of facts per session, not millions, so no index is kept.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/loreweaver/internal/embedding"
	"go.uber.org/zap"
)

// DefaultSimilarityThreshold is the dedupe cutoff used when a WriteRequest
// does not supply one.
const DefaultSimilarityThreshold = 0.85

// dedupeWindow bounds how many recent records a dedupe check scans.
const dedupeWindow = 10

// Store owns the append-only record log and the derived NPC snapshot index
// for a single session. One writer per session is assumed; the lock only
// keeps inspection reads safe alongside that writer.
type Store struct {
	embedder embedding.Provider
	logger   *zap.Logger

	mu       sync.RWMutex
	records  []*Record
	npcIndex map[string]*NPCSnapshot
}

// NewStore creates an empty store backed by the given embedder.
func NewStore(embedder embedding.Provider, logger *zap.Logger) *Store {
	return &Store{
		embedder: embedder,
		logger:   logger,
		npcIndex: make(map[string]*NPCSnapshot),
	}
}

// WriteRequest describes one fact to store.
type WriteRequest struct {
	Summary  string
	Entities []string
	Category Category
	NPC      *NPCPayload

	// DedupeCheck compares the summary against the most recent records and
	// short-circuits to the existing ID on a near-duplicate.
	DedupeCheck bool
	// SimilarityThreshold overrides DefaultSimilarityThreshold when > 0.
	SimilarityThreshold float64
}

// Write appends a new record and returns its ID. With DedupeCheck set, a
// summary whose similarity to one of the last ten records meets the
// threshold returns that record's ID instead of growing the log.
//
// An NPC payload on an npc-category record is merged into the snapshot
// index as a side effect; a rejected merge (empty name) never rolls back
// the record write.
func (s *Store) Write(ctx context.Context, req WriteRequest) (string, error) {
	vec, err := embedding.EmbedOne(ctx, s.embedder, req.Summary)
	if err != nil {
		return "", fmt.Errorf("embed summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.DedupeCheck && len(s.records) > 0 {
		threshold := req.SimilarityThreshold
		if threshold <= 0 {
			threshold = DefaultSimilarityThreshold
		}
		start := len(s.records) - dedupeWindow
		if start < 0 {
			start = 0
		}
		for _, rec := range s.records[start:] {
			if sim := embedding.Dot(vec, rec.Vector); sim >= threshold {
				s.logger.Debug("dedupe hit, reusing record",
					zap.String("id", rec.ID),
					zap.Float64("similarity", sim))
				return rec.ID, nil
			}
		}
	}

	rec := &Record{
		ID:        uuid.New().String(),
		Summary:   req.Summary,
		Entities:  SanitizeEntities(req.Entities),
		Category:  req.Category,
		Timestamp: time.Now(),
		Vector:    vec,
	}
	if req.Category == CategoryNPC && req.NPC != nil {
		rec.NPC = req.NPC
	}
	s.records = append(s.records, rec)

	if rec.NPC != nil {
		s.upsertNPC(rec)
	}

	s.logger.Debug("stored memory",
		zap.String("id", rec.ID),
		zap.String("category", string(rec.Category)))
	return rec.ID, nil
}

// upsertNPC merges rec's payload into the snapshot index. Caller holds the
// write lock.
func (s *Store) upsertNPC(rec *Record) {
	name := rec.NPC.Name
	key := CanonicalName(name)
	if key == "" {
		return
	}
	snap, ok := s.npcIndex[key]
	if !ok {
		snap = newSnapshot(name)
		s.npcIndex[key] = snap
	}
	snap.merge(rec.NPC, rec.Summary, rec.Timestamp)
}

// RebuildNPCIndex discards the snapshot index and replays the record log.
// Because merges are stamped with record timestamps, the rebuilt index is
// identical to the incrementally maintained one.
func (s *Store) RebuildNPCIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.npcIndex = make(map[string]*NPCSnapshot)
	for _, rec := range s.records {
		if rec.NPC != nil {
			s.upsertNPC(rec)
		}
	}
}

// Scored pairs a record with its similarity score.
type Scored struct {
	Score  float64
	Record *Record
}

// SimilaritySearch scans every stored record against qvec and returns the
// top k by descending dot product. The sort is stable, so equal scores keep
// insertion order.
func (s *Store) SimilaritySearch(qvec []float32, k int) []Scored {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]Scored, len(s.records))
	for i, rec := range s.records {
		scored[i] = Scored{Score: embedding.Dot(qvec, rec.Vector), Record: rec}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// RecencyBonus is the decaying score bump shared by fact ranking and NPC
// snapshot ranking: half-life 600 seconds, ceiling 0.05, never negative.
func RecencyBonus(age time.Duration) float64 {
	sec := age.Seconds()
	if sec < 0 {
		sec = 0
	}
	return math.Pow(0.5, sec/600.0) * 0.05
}

// RelevantNPCSnapshots scores every snapshot against the query by embedding
// its composed text (name, aliases, intent, location) and adding the
// recency bonus over LastSeenTime, returning the top k. A snapshot with no
// composable text reuses the query's own vector as a neutral stand-in.
func (s *Store) RelevantNPCSnapshots(ctx context.Context, query string, k int) ([]*NPCSnapshot, error) {
	s.mu.RLock()
	snaps := make([]*NPCSnapshot, 0, len(s.npcIndex))
	for _, snap := range s.npcIndex {
		snaps = append(snaps, snap)
	}
	s.mu.RUnlock()

	if len(snaps) == 0 {
		return nil, nil
	}
	// Deterministic scan order before the stable sort.
	sort.Slice(snaps, func(i, j int) bool {
		return CanonicalName(snaps[i].DisplayName) < CanonicalName(snaps[j].DisplayName)
	})

	qvec, err := embedding.EmbedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	type scoredSnap struct {
		score float64
		snap  *NPCSnapshot
	}
	now := time.Now()
	scored := make([]scoredSnap, 0, len(snaps))
	for _, snap := range snaps {
		svec := qvec
		if text := snap.composeText(); text != "" {
			svec, err = embedding.EmbedOne(ctx, s.embedder, text)
			if err != nil {
				return nil, fmt.Errorf("embed snapshot %q: %w", snap.DisplayName, err)
			}
		}
		score := embedding.Dot(qvec, svec) + RecencyBonus(now.Sub(snap.LastSeenTime))
		scored = append(scored, scoredSnap{score: score, snap: snap})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	out := make([]*NPCSnapshot, len(scored))
	for i, ss := range scored {
		out[i] = ss.snap
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns the record log in insertion order. Intended for
// inspection endpoints; callers must not mutate the records.
func (s *Store) Records() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Snapshot returns a copy of the snapshot for a (non-canonical) name, if
// present.
func (s *Store) Snapshot(name string) (*NPCSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.npcIndex[CanonicalName(name)]
	if !ok {
		return nil, false
	}
	return snap.clone(), true
}

// Snapshots returns copies of every NPC snapshot sorted by canonical name.
// Copies keep inspection reads safe alongside the session's writer.
func (s *Store) Snapshots() []*NPCSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*NPCSnapshot, 0, len(s.npcIndex))
	for _, snap := range s.npcIndex {
		out = append(out, snap.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return CanonicalName(out[i].DisplayName) < CanonicalName(out[j].DisplayName)
	})
	return out
}
