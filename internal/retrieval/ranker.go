// Package retrieval ranks stored facts for prompt injection.
//
// Ranking is two-stage: an oversampled similarity scan, then a rerank with
// small recency and category bonuses layered on top. The bonuses total at
// most 0.11 against a similarity in [-1, 1], so oversampling is what lets a
// slightly-less-similar but fresher or more alarming fact surface.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nidhogg/loreweaver/internal/embedding"
	"github.com/nidhogg/loreweaver/internal/memory"
	"go.uber.org/zap"
)

// BonusTable maps fact categories to additive score weights. Categories
// absent from the table contribute nothing.
type BonusTable map[memory.Category]float64

// DefaultBonusTable returns the standard category weights: threats rank
// above people, people above goals, goals above items.
func DefaultBonusTable() BonusTable {
	return BonusTable{
		memory.CategoryThreat:       0.06,
		memory.CategoryNPC:          0.05,
		memory.CategoryRelationship: 0.05,
		memory.CategoryGoal:         0.04,
		memory.CategoryItem:         0.02,
	}
}

// Ranker combines similarity, recency decay and category weight into one
// ordering over a store's records. It holds no state of its own beyond
// configuration.
type Ranker struct {
	embedder embedding.Provider
	store    *memory.Store
	bonuses  BonusTable
	logger   *zap.Logger
}

// NewRanker creates a ranker over the given store. A nil bonus table uses
// DefaultBonusTable.
func NewRanker(embedder embedding.Provider, store *memory.Store, bonuses BonusTable, logger *zap.Logger) *Ranker {
	if bonuses == nil {
		bonuses = DefaultBonusTable()
	}
	return &Ranker{embedder: embedder, store: store, bonuses: bonuses, logger: logger}
}

// Score reproduces the exact ranking formula for one record at a given
// moment: similarity + recency bonus + category bonus.
func (r *Ranker) Score(similarity float64, rec *memory.Record, now time.Time) float64 {
	return similarity + memory.RecencyBonus(now.Sub(rec.Timestamp)) + r.bonuses[rec.Category]
}

// WeightedRetrieve returns the top k records for the query. It oversamples
// the similarity scan by max(2k, 5) candidates before reranking so the
// bonuses can reorder near-ties; the rerank sort is stable, preserving scan
// order on equal combined scores.
func (r *Ranker) WeightedRetrieve(ctx context.Context, query string, k int) ([]*memory.Record, error) {
	qvec, err := embedding.EmbedOne(ctx, r.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	oversample := 2 * k
	if oversample < 5 {
		oversample = 5
	}
	candidates := r.store.SimilaritySearch(qvec, oversample)
	if len(candidates) == 0 {
		return nil, nil
	}

	now := time.Now()
	type ranked struct {
		score float64
		rec   *memory.Record
	}
	rescored := make([]ranked, len(candidates))
	for i, c := range candidates {
		rescored[i] = ranked{score: r.Score(c.Score, c.Record, now), rec: c.Record}
	}
	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].score > rescored[j].score
	})

	if len(rescored) > k {
		rescored = rescored[:k]
	}
	out := make([]*memory.Record, len(rescored))
	for i, rr := range rescored {
		out[i] = rr.rec
	}

	r.logger.Debug("weighted retrieval",
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(out)))
	return out, nil
}
