package httpadapter

import (
	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// searchRequestBody leaves omitted fields nil so configured defaults apply.
type searchRequestBody struct {
	Query          string              `json:"query"`
	Filter         domain.SearchFilter `json:"filter"`
	TopK           *int                `json:"top_k,omitempty"`
	ScoreThreshold *float64            `json:"score_threshold,omitempty"`
	Fusion         *fusionOverrides    `json:"fusion,omitempty"`
	Channels       []domain.Channel    `json:"channels,omitempty"`
	BM25           *domain.BM25Params  `json:"bm25,omitempty"`
}

type fusionOverrides struct {
	K                   *int               `json:"k,omitempty"`
	Normalize           *bool              `json:"normalize,omitempty"`
	BoostKeywordMatches *bool              `json:"boost_keyword_matches,omitempty"`
	KeywordBoostWeight  *float64           `json:"keyword_boost_weight,omitempty"`
	MatchLabel          *domain.MatchLabel `json:"match_label,omitempty"`
}

func (b searchRequestBody) apply(req domain.SearchRequest) domain.SearchRequest {
	req.Query = b.Query
	req.Filter = b.Filter
	req.Channels = b.Channels
	req.BM25 = b.BM25
	if b.TopK != nil {
		req.TopK = *b.TopK
	}
	if b.ScoreThreshold != nil {
		req.ScoreThreshold = *b.ScoreThreshold
	}
	if f := b.Fusion; f != nil {
		if f.K != nil {
			req.Fusion.K = *f.K
		}
		if f.Normalize != nil {
			req.Fusion.Normalize = *f.Normalize
		}
		if f.BoostKeywordMatches != nil {
			req.Fusion.BoostKeywordMatches = *f.BoostKeywordMatches
		}
		if f.KeywordBoostWeight != nil {
			req.Fusion.KeywordBoostWeight = *f.KeywordBoostWeight
		}
		if f.MatchLabel != nil {
			req.Fusion.MatchLabel = *f.MatchLabel
		}
	}
	return req
}

type searchResponseBody struct {
	RequestID string `json:"request_id"`
	*domain.SearchResponse
}

type refitRequestBody struct {
	Reason string `json:"reason"`
}

type snapshotResponseBody struct {
	Version               uint64  `json:"version"`
	FittedAt              string  `json:"fitted_at"`
	DocumentCount         int     `json:"document_count"`
	AverageDocumentLength float64 `json:"average_document_length"`
	VocabularySize        int     `json:"vocabulary_size"`
}
