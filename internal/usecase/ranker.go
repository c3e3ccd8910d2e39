package usecase

import (
	"sort"

	"github.com/sitelens/backend/internal/domain"
)

// Ranker orders scored locations.
// Order: score descending, then lower rent index, then location ID ascending.
type Ranker struct{}

// NewRanker creates a ranker
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank returns at most topK candidates in rank order.
// The input slice is left untouched; topK <= 0 yields an empty result.
func (r *Ranker) Rank(candidates []domain.ScoredLocation, topK int) []domain.ScoredLocation {
	if topK <= 0 {
		return []domain.ScoredLocation{}
	}

	ranked := make([]domain.ScoredLocation, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return rankLess(&ranked[i], &ranked[j])
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

func rankLess(a, b *domain.ScoredLocation) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Location.RentIndex != b.Location.RentIndex {
		return a.Location.RentIndex < b.Location.RentIndex
	}
	return a.Location.ID < b.Location.ID
}
