package usecase

import (
	"sort"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// FilterByThreshold keeps candidates whose final score reaches threshold, preserving order.
func FilterByThreshold(candidates []domain.FusedCandidate, threshold float64) []domain.FusedCandidate {
	out := make([]domain.FusedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.FinalScore >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// Assemble orders filtered candidates by final score, ties by fused insertion order, and
// truncates to topK.
func Assemble(totalBefore int, filtered []domain.FusedCandidate, topK int) *domain.SearchResponse {
	ordered := make([]domain.FusedCandidate, len(filtered))
	copy(ordered, filtered)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FinalScore != ordered[j].FinalScore {
			return ordered[i].FinalScore > ordered[j].FinalScore
		}
		return ordered[i].Seq < ordered[j].Seq
	})
	if topK > 0 && len(ordered) > topK {
		ordered = ordered[:topK]
	}
	return &domain.SearchResponse{
		Results:              ordered,
		TotalBeforeFiltering: totalBefore,
		TotalAfterFiltering:  len(filtered),
	}
}
