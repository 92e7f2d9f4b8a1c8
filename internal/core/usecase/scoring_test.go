package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

const scoreEps = 1e-9

func scoredCandidates(rrf ...float64) []domain.FusedCandidate {
	out := make([]domain.FusedCandidate, len(rrf))
	for i, score := range rrf {
		out[i] = domain.FusedCandidate{
			ID:            string(rune('a' + i)),
			RRFScore:      score,
			ChannelScores: map[domain.Channel]float64{domain.ChannelSemantic: 0.5},
			Seq:           i,
		}
	}
	return out
}

func TestApplyScoringWithoutNormalizationKeepsRRF(t *testing.T) {
	candidates := scoredCandidates(0.03, 0.02)
	cfg := domain.DefaultFusionConfig()
	cfg.Normalize = false
	ApplyScoring(candidates, cfg, DefaultScoreShaping())
	if candidates[0].FinalScore != 0.03 || candidates[1].FinalScore != 0.02 {
		t.Fatalf("expected raw rrf scores, got %+v", candidates)
	}
}

func TestApplyScoringDegeneratePlateau(t *testing.T) {
	candidates := scoredCandidates(1.0/61, 1.0/61, 1.0/61)
	candidates[0].ChannelScores[domain.ChannelLexical] = 9
	ApplyScoring(candidates, domain.DefaultFusionConfig(), DefaultScoreShaping())
	for _, c := range candidates {
		if c.FinalScore != 0.7 {
			t.Fatalf("expected plateau 0.7, got %f", c.FinalScore)
		}
	}
}

func TestApplyScoringPowerCurve(t *testing.T) {
	candidates := scoredCandidates(0.03, 0.02, 0.01)
	ApplyScoring(candidates, domain.DefaultFusionConfig(), DefaultScoreShaping())
	if math.Abs(candidates[0].FinalScore-1) > scoreEps {
		t.Fatalf("expected top score 1, got %f", candidates[0].FinalScore)
	}
	if math.Abs(candidates[1].FinalScore-math.Pow(0.5, 0.7)) > scoreEps {
		t.Fatalf("expected 0.5^0.7, got %f", candidates[1].FinalScore)
	}
	if candidates[2].FinalScore != 0 {
		t.Fatalf("expected bottom score 0, got %f", candidates[2].FinalScore)
	}
}

func TestApplyScoringKeywordBoost(t *testing.T) {
	candidates := scoredCandidates(0.03, 0.02, 0.01)
	candidates[1].ChannelScores[domain.ChannelLexical] = 4
	ApplyScoring(candidates, domain.DefaultFusionConfig(), DefaultScoreShaping())

	want := math.Pow(0.5, 0.7) + 0.4*0.3
	if math.Abs(candidates[1].FinalScore-want) > scoreEps {
		t.Fatalf("expected boosted score %f, got %f", want, candidates[1].FinalScore)
	}
}

func TestApplyScoringFloorForStrongKeywordHits(t *testing.T) {
	candidates := scoredCandidates(0.03, 0.02, 0.01)
	candidates[2].ChannelScores[domain.ChannelLexical] = 8
	ApplyScoring(candidates, domain.DefaultFusionConfig(), DefaultScoreShaping())

	if math.Abs(candidates[2].FinalScore-0.93) > scoreEps {
		t.Fatalf("expected floor 0.93, got %f", candidates[2].FinalScore)
	}
}

func TestApplyScoringFloorOnlyWithinTopN(t *testing.T) {
	candidates := scoredCandidates(0.06, 0.05, 0.04, 0.03, 0.02, 0.01)
	candidates[5].ChannelScores[domain.ChannelLexical] = 8
	ApplyScoring(candidates, domain.DefaultFusionConfig(), DefaultScoreShaping())

	if math.Abs(candidates[5].FinalScore-0.24) > scoreEps {
		t.Fatalf("expected boost only for sixth candidate, got %f", candidates[5].FinalScore)
	}
}

func TestApplyScoringFloorAppliesWithoutBoost(t *testing.T) {
	candidates := scoredCandidates(0.03, 0.02, 0.01)
	candidates[1].ChannelScores[domain.ChannelLexical] = 3
	candidates[2].ChannelScores[domain.ChannelLexical] = 8
	cfg := domain.DefaultFusionConfig()
	cfg.BoostKeywordMatches = false
	ApplyScoring(candidates, cfg, DefaultScoreShaping())

	if math.Abs(candidates[2].FinalScore-0.93) > scoreEps {
		t.Fatalf("expected floor 0.93 without boost, got %f", candidates[2].FinalScore)
	}
	if want := math.Pow(0.5, 0.7); math.Abs(candidates[1].FinalScore-want) > scoreEps {
		t.Fatalf("expected weak keyword hit left unboosted at %f, got %f", want, candidates[1].FinalScore)
	}
}

func TestApplyScoringClampsAndStaysInUnitRange(t *testing.T) {
	candidates := scoredCandidates(0.05, 0.04, 0.033, 0.021, 0.02, 0.0101, 0.01)
	for i := range candidates {
		candidates[i].ChannelScores[domain.ChannelLexical] = float64(i*4) - 3
	}
	cfg := domain.DefaultFusionConfig()
	cfg.KeywordBoostWeight = 2
	ApplyScoring(candidates, cfg, DefaultScoreShaping())

	for _, c := range candidates {
		if c.FinalScore < 0 || c.FinalScore > 1 {
			t.Fatalf("score out of range for %s: %f", c.ID, c.FinalScore)
		}
	}
	if candidates[0].FinalScore != 1 {
		t.Fatalf("expected top score clamped to 1, got %f", candidates[0].FinalScore)
	}
}

func TestScoreShapingValidate(t *testing.T) {
	if err := DefaultScoreShaping().Validate(); err != nil {
		t.Fatalf("defaults must be valid: %v", err)
	}
	bad := DefaultScoreShaping()
	bad.Exponent = 0
	if err := bad.Validate(); !domain.IsKind(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}
