package usecase

import (
	"fmt"
	"math"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// ScoreShaping holds the empirically tuned presentation constants applied after fusion.
type ScoreShaping struct {
	// Plateau is assigned to every candidate when fused scores do not spread.
	Plateau          float64 `yaml:"plateau"`
	DegenerateSpread float64 `yaml:"degenerate_spread"`
	Exponent         float64 `yaml:"exponent"`
	BM25Scale        float64 `yaml:"bm25_scale"`

	// Strong keyword hits near the top are raised to at least FloorBase+bm25Normalized*FloorSpan.
	FloorTopN    int     `yaml:"floor_top_n"`
	FloorMinBM25 float64 `yaml:"floor_min_bm25"`
	FloorBase    float64 `yaml:"floor_base"`
	FloorSpan    float64 `yaml:"floor_span"`
}

func DefaultScoreShaping() ScoreShaping {
	return ScoreShaping{
		Plateau:          0.7,
		DegenerateSpread: 1e-9,
		Exponent:         0.7,
		BM25Scale:        10,
		FloorTopN:        5,
		FloorMinBM25:     5,
		FloorBase:        0.85,
		FloorSpan:        0.1,
	}
}

func (s ScoreShaping) Validate() error {
	switch {
	case s.Plateau < 0 || s.Plateau > 1:
		return domain.WrapError(domain.ErrInvalidConfiguration, "scoring.plateau", fmt.Errorf("must be within [0,1], got %g", s.Plateau))
	case s.DegenerateSpread < 0:
		return domain.WrapError(domain.ErrInvalidConfiguration, "scoring.degenerate_spread", fmt.Errorf("must be >= 0, got %g", s.DegenerateSpread))
	case s.Exponent <= 0:
		return domain.WrapError(domain.ErrInvalidConfiguration, "scoring.exponent", fmt.Errorf("must be > 0, got %g", s.Exponent))
	case s.BM25Scale <= 0:
		return domain.WrapError(domain.ErrInvalidConfiguration, "scoring.bm25_scale", fmt.Errorf("must be > 0, got %g", s.BM25Scale))
	case s.FloorTopN < 0:
		return domain.WrapError(domain.ErrInvalidConfiguration, "scoring.floor_top_n", fmt.Errorf("must be >= 0, got %d", s.FloorTopN))
	}
	return nil
}

// ApplyScoring sets FinalScore on candidates, which must be in fused order.
func ApplyScoring(candidates []domain.FusedCandidate, cfg domain.FusionConfig, shaping ScoreShaping) {
	if len(candidates) == 0 {
		return
	}
	if !cfg.Normalize {
		for i := range candidates {
			candidates[i].FinalScore = candidates[i].RRFScore
		}
		return
	}

	minScore, maxScore := candidates[0].RRFScore, candidates[0].RRFScore
	for _, c := range candidates[1:] {
		minScore = math.Min(minScore, c.RRFScore)
		maxScore = math.Max(maxScore, c.RRFScore)
	}
	spread := maxScore - minScore
	if spread < shaping.DegenerateSpread {
		for i := range candidates {
			candidates[i].FinalScore = shaping.Plateau
		}
		return
	}

	for i := range candidates {
		normalized := (candidates[i].RRFScore - minScore) / spread
		candidates[i].FinalScore = math.Pow(normalized, shaping.Exponent)
	}

	if cfg.BoostKeywordMatches {
		for i := range candidates {
			if bm25, ok := candidates[i].LexicalScore(); ok {
				candidates[i].FinalScore += shaping.bm25Normalized(bm25) * cfg.KeywordBoostWeight
			}
		}
	}

	top := min(shaping.FloorTopN, len(candidates))
	for i := 0; i < top; i++ {
		bm25, ok := candidates[i].LexicalScore()
		if !ok || bm25 <= shaping.FloorMinBM25 {
			continue
		}
		floor := shaping.FloorBase + shaping.bm25Normalized(bm25)*shaping.FloorSpan
		candidates[i].FinalScore = math.Max(candidates[i].FinalScore, floor)
	}

	for i := range candidates {
		candidates[i].FinalScore = clamp01(candidates[i].FinalScore)
	}
}

func (s ScoreShaping) bm25Normalized(bm25 float64) float64 {
	if bm25 <= 0 || math.IsNaN(bm25) {
		return 0
	}
	return math.Min(bm25/s.BM25Scale, 1)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
