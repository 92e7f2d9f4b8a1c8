package lexical

import "testing"

func TestTokenIndexIsStableSHA256Prefix(t *testing.T) {
	if TokenIndex("contract") != TokenIndex("contract") {
		t.Fatalf("expected deterministic index")
	}
	if TokenIndex("contract") == TokenIndex("contracts") {
		t.Fatalf("expected different tokens to map to different indices")
	}
}

func TestToSparseSortsIndicesAscending(t *testing.T) {
	weights := TermWeightVector{
		{Token: "zulu", Weight: 1},
		{Token: "alpha", Weight: 2},
		{Token: "breach", Weight: 3},
		{Token: "gamma", Weight: 4},
	}
	v := ToSparse(weights, NewTokenIndexCache())
	if len(v.Indices) != 4 || len(v.Values) != 4 {
		t.Fatalf("unexpected sizes: %+v", v)
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] >= v.Indices[i] {
			t.Fatalf("indices not strictly ascending at %d: %d >= %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
	for i, idx := range v.Indices {
		for _, tw := range weights {
			if TokenIndex(tw.Token) == idx && v.Values[i] != float32(tw.Weight) {
				t.Fatalf("value mismatch for %s", tw.Token)
			}
		}
	}
}

func TestToSparseDeterministicAcrossSessions(t *testing.T) {
	weights := Encode(NewTokenizer(nil), "Risk of default under the DOC_0001 lease", nil, DefaultParams())
	v1 := ToSparse(weights, NewTokenIndexCache())
	v2 := ToSparse(weights, nil)
	if len(v1.Indices) != len(v2.Indices) {
		t.Fatalf("vector sizes mismatch: %d vs %d", len(v1.Indices), len(v2.Indices))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] || v1.Values[i] != v2.Values[i] {
			t.Fatalf("mismatch at %d", i)
		}
	}
}

func TestToSparseCollisionLaterTokenOverwrites(t *testing.T) {
	weights := TermWeightVector{
		{Token: "notice", Weight: 1.5},
		{Token: "notice", Weight: 2.5},
	}
	v := ToSparse(weights, NewTokenIndexCache())
	if len(v.Indices) != 1 {
		t.Fatalf("expected a single dimension, got %+v", v)
	}
	if v.Values[0] != 2.5 {
		t.Fatalf("expected later value to win, got %f", v.Values[0])
	}
}

func TestToSparseEmpty(t *testing.T) {
	if v := ToSparse(nil, NewTokenIndexCache()); !v.Empty() {
		t.Fatalf("expected empty vector, got %+v", v)
	}
}

func TestTokenIndexCacheMemoizes(t *testing.T) {
	cache := NewTokenIndexCache()
	cache.Index("tort")
	cache.Index("tort")
	cache.Index("damages")
	if cache.Len() != 2 {
		t.Fatalf("expected 2 cached tokens, got %d", cache.Len())
	}
}
