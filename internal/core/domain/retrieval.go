package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Channel string

const (
	ChannelLexical  Channel = "lexical"
	ChannelSemantic Channel = "semantic"
)

// AllChannels is the fixed fan-out order; fused insertion order follows it.
var AllChannels = []Channel{ChannelLexical, ChannelSemantic}

const MatchHybrid = "hybrid"

// MatchLabel selects how candidates found by both channels are labelled.
type MatchLabel string

const (
	MatchLabelHybrid MatchLabel = "hybrid"
	// MatchLabelNative labels a two-channel hit with the channel whose native score is higher.
	MatchLabelNative MatchLabel = "native"
)

// ChannelResult is one hit as returned by a single retrieval channel.
type ChannelResult struct {
	ID          string         `json:"id"`
	Rank        int            `json:"rank"`
	NativeScore float64        `json:"native_score"`
	Channel     Channel        `json:"channel"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// FusedCandidate is request scoped and owned by the fusion step.
type FusedCandidate struct {
	ID            string              `json:"id"`
	RRFScore      float64             `json:"rrf_score"`
	ChannelScores map[Channel]float64 `json:"channel_scores"`
	ChannelRanks  map[Channel]int     `json:"channel_ranks"`
	FinalScore    float64             `json:"final_score"`
	MatchType     string              `json:"match_type"`
	Payload       map[string]any      `json:"payload,omitempty"`
	Seq           int                 `json:"-"`
}

func (c FusedCandidate) LexicalScore() (float64, bool) {
	score, ok := c.ChannelScores[ChannelLexical]
	return score, ok
}

type FusionConfig struct {
	K                   int        `json:"k" yaml:"k"`
	Normalize           bool       `json:"normalize" yaml:"normalize"`
	BoostKeywordMatches bool       `json:"boost_keyword_matches" yaml:"boost_keyword_matches"`
	KeywordBoostWeight  float64    `json:"keyword_boost_weight" yaml:"keyword_boost_weight"`
	MatchLabel          MatchLabel `json:"match_label,omitempty" yaml:"match_label"`
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		K:                   60,
		Normalize:           true,
		BoostKeywordMatches: true,
		KeywordBoostWeight:  0.3,
		MatchLabel:          MatchLabelHybrid,
	}
}

func (c FusionConfig) Validate() error {
	if c.K < 1 {
		return invalidConfig("fusion.k", "must be >= 1, got %d", c.K)
	}
	if c.KeywordBoostWeight < 0 {
		return invalidConfig("fusion.keyword_boost_weight", "must be >= 0, got %g", c.KeywordBoostWeight)
	}
	switch c.MatchLabel {
	case "", MatchLabelHybrid, MatchLabelNative:
	default:
		return invalidConfig("fusion.match_label", "unknown mode %q", c.MatchLabel)
	}
	return nil
}

// BM25Params holds the term frequency saturation (K1) and length normalization (B) knobs.
type BM25Params struct {
	K1 float64 `json:"k1" yaml:"k1"`
	B  float64 `json:"b" yaml:"b"`
}

func (p BM25Params) Validate() error {
	if math.IsNaN(p.K1) || p.K1 < 0 || p.K1 > 10 {
		return invalidConfig("bm25.k1", "must be within [0,10], got %g", p.K1)
	}
	if math.IsNaN(p.B) || p.B < 0 || p.B > 1 {
		return invalidConfig("bm25.b", "must be within [0,1], got %g", p.B)
	}
	return nil
}

type SearchRequest struct {
	Query          string       `json:"query"`
	Filter         SearchFilter `json:"filter"`
	TopK           int          `json:"top_k"`
	ScoreThreshold float64      `json:"score_threshold"`
	Fusion         FusionConfig `json:"fusion"`
	Channels       []Channel    `json:"channels,omitempty"`
	// BM25 overrides the model parameters for query weighting only.
	BM25      *BM25Params `json:"bm25,omitempty"`
	RequestID string      `json:"-"`
}

func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return WrapError(ErrInvalidInput, "query", fmt.Errorf("query is required"))
	}
	if r.TopK < 1 {
		return invalidConfig("top_k", "must be >= 1, got %d", r.TopK)
	}
	if r.ScoreThreshold < 0 || r.ScoreThreshold > 1 {
		return invalidConfig("score_threshold", "must be within [0,1], got %g", r.ScoreThreshold)
	}
	for _, ch := range r.Channels {
		if ch != ChannelLexical && ch != ChannelSemantic {
			return invalidConfig("channels", "unknown channel %q", ch)
		}
	}
	if r.BM25 != nil {
		if err := r.BM25.Validate(); err != nil {
			return err
		}
	}
	if err := r.Filter.Validate(); err != nil {
		return err
	}
	return r.Fusion.Validate()
}

type ChannelState string

const (
	ChannelOK       ChannelState = "ok"
	ChannelFailed   ChannelState = "failed"
	ChannelTimeout  ChannelState = "timeout"
	ChannelDisabled ChannelState = "disabled"
)

type ChannelReport struct {
	State      ChannelState `json:"state"`
	Results    int          `json:"results"`
	Error      string       `json:"error,omitempty"`
	DurationMS float64      `json:"duration_ms"`
}

type Diagnostics struct {
	Channels        map[Channel]ChannelReport `json:"channels"`
	Degraded        bool                      `json:"degraded"`
	SnapshotVersion uint64                    `json:"snapshot_version"`
	Elapsed         time.Duration             `json:"-"`
}

type SearchResponse struct {
	Results              []FusedCandidate `json:"results"`
	TotalBeforeFiltering int              `json:"total_before_filtering"`
	TotalAfterFiltering  int              `json:"total_after_filtering"`
	Diagnostics          Diagnostics      `json:"diagnostics"`
}
