package domain

import (
	"errors"
	"math"
	"testing"
)

func validRequest() SearchRequest {
	return SearchRequest{
		Query:  "breach of contract",
		TopK:   10,
		Fusion: DefaultFusionConfig(),
	}
}

func TestSearchRequestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SearchRequest)
		kind   error
	}{
		{name: "valid", mutate: func(*SearchRequest) {}},
		{name: "blank query", mutate: func(r *SearchRequest) { r.Query = "  \t" }, kind: ErrInvalidInput},
		{name: "zero top k", mutate: func(r *SearchRequest) { r.TopK = 0 }, kind: ErrInvalidConfiguration},
		{name: "threshold above one", mutate: func(r *SearchRequest) { r.ScoreThreshold = 1.01 }, kind: ErrInvalidConfiguration},
		{name: "negative threshold", mutate: func(r *SearchRequest) { r.ScoreThreshold = -0.1 }, kind: ErrInvalidConfiguration},
		{name: "threshold bounds inclusive", mutate: func(r *SearchRequest) { r.ScoreThreshold = 1 }},
		{name: "unknown channel", mutate: func(r *SearchRequest) { r.Channels = []Channel{"graph"} }, kind: ErrInvalidConfiguration},
		{name: "unknown kind", mutate: func(r *SearchRequest) { r.Filter.Kinds = []EvidenceKind{"photo"} }, kind: ErrInvalidInput},
		{name: "bm25 override out of range", mutate: func(r *SearchRequest) { r.BM25 = &BM25Params{K1: 1.2, B: 2} }, kind: ErrInvalidConfiguration},
		{name: "fusion k zero", mutate: func(r *SearchRequest) { r.Fusion.K = 0 }, kind: ErrInvalidConfiguration},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			if tc.kind == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestFusionConfigValidate(t *testing.T) {
	cfg := DefaultFusionConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.KeywordBoostWeight = -0.1
	if err := cfg.Validate(); !IsKind(err, ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration for negative weight, got %v", err)
	}

	cfg = DefaultFusionConfig()
	cfg.MatchLabel = "dominant"
	if err := cfg.Validate(); !IsKind(err, ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration for unknown label, got %v", err)
	}

	cfg.MatchLabel = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty label should default, got %v", err)
	}
}

func TestBM25ParamsValidate(t *testing.T) {
	valid := []BM25Params{{K1: 0, B: 0}, {K1: 1.5, B: 0.75}, {K1: 10, B: 1}}
	for _, p := range valid {
		if err := p.Validate(); err != nil {
			t.Fatalf("params %+v rejected: %v", p, err)
		}
	}

	invalid := []BM25Params{{K1: -1, B: 0.5}, {K1: 11, B: 0.5}, {K1: 1, B: -0.1}, {K1: math.NaN(), B: 0.5}}
	for _, p := range invalid {
		if err := p.Validate(); !IsKind(err, ErrInvalidConfiguration) {
			t.Fatalf("params %+v: expected invalid configuration, got %v", p, err)
		}
	}
}

func TestWrapErrorKeepsKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(ErrTemporary, "qdrant.search", cause)
	if !IsKind(err, ErrTemporary) || !errors.Is(err, cause) {
		t.Fatalf("wrapped error lost its chain: %v", err)
	}
	if WrapError(ErrTemporary, "noop", nil) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestPassagePayload(t *testing.T) {
	p := Passage{ID: "p1", CaseID: "c1", DocumentID: "d1", Kind: KindTranscript, Position: 3, Text: "witness stated"}
	payload := p.Payload()
	if payload["kind"] != "transcript" || payload["position"] != 3 || payload["case_id"] != "c1" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if _, ok := payload["id"]; ok {
		t.Fatal("payload must not duplicate the passage id")
	}
}
