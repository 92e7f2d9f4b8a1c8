package lexical

import (
	"math"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75

	// Cold start values used when no corpus has been fitted yet.
	UnfittedIDF          = 2.0
	UnfittedAvgDocLength = 100.0
	// UnseenTokenIDF applies to tokens absent from a fitted corpus.
	UnseenTokenIDF = 1.0

	minAvgDocLength = 1.0
)

type Params = domain.BM25Params

func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// CorpusStatistics is immutable once published.
type CorpusStatistics struct {
	Version               uint64         `json:"version"`
	FittedAt              time.Time      `json:"fitted_at"`
	DocumentFrequency     map[string]int `json:"document_frequency"`
	DocumentCount         int            `json:"document_count"`
	AverageDocumentLength float64        `json:"average_document_length"`
}

func (s *CorpusStatistics) IDF(token string) float64 {
	if s == nil {
		return UnfittedIDF
	}
	df, ok := s.DocumentFrequency[token]
	if !ok {
		return UnseenTokenIDF
	}
	return IDF(s.DocumentCount, df)
}

func (s *CorpusStatistics) avgDocLength() float64 {
	if s == nil {
		return UnfittedAvgDocLength
	}
	return math.Max(s.AverageDocumentLength, minAvgDocLength)
}

// IDF returns ln((N-df+0.5)/(df+0.5)+1), which is non-negative and strictly decreasing in df.
func IDF(documentCount, df int) float64 {
	n := float64(documentCount)
	d := float64(df)
	return math.Log((n-d+0.5)/(d+0.5) + 1)
}

// Fit counts document frequencies and lengths over corpus. An empty corpus yields
// usable statistics with the average length guarded to 1.
func Fit(tokenizer *Tokenizer, corpus []string) *CorpusStatistics {
	fitter := NewFitter(tokenizer)
	for _, text := range corpus {
		fitter.Add(text)
	}
	return fitter.Statistics()
}

// Fitter accumulates statistics document by document so large corpora can be streamed.
type Fitter struct {
	tokenizer   *Tokenizer
	df          map[string]int
	documents   int
	totalLength int
}

func NewFitter(tokenizer *Tokenizer) *Fitter {
	if tokenizer == nil {
		tokenizer = NewTokenizer(nil)
	}
	return &Fitter{tokenizer: tokenizer, df: make(map[string]int)}
}

func (f *Fitter) Add(text string) {
	tokens := f.tokenizer.Tokenize(text)
	f.documents++
	f.totalLength += len(tokens)
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		f.df[token]++
	}
}

func (f *Fitter) Documents() int {
	return f.documents
}

func (f *Fitter) Statistics() *CorpusStatistics {
	df := make(map[string]int, len(f.df))
	for token, count := range f.df {
		df[token] = count
	}
	avg := float64(f.totalLength) / float64(max(f.documents, 1))
	return &CorpusStatistics{
		DocumentFrequency:     df,
		DocumentCount:         f.documents,
		AverageDocumentLength: math.Max(avg, minAvgDocLength),
	}
}

type TermWeight struct {
	Token  string  `json:"token"`
	Weight float64 `json:"weight"`
}

// TermWeightVector is ordered by first occurrence of each token in the encoded text.
type TermWeightVector []TermWeight

// Encode weights every distinct token of text against stats. A nil stats means the
// cold start defaults. Non-positive and non-finite weights are dropped.
func Encode(tokenizer *Tokenizer, text string, stats *CorpusStatistics, params Params) TermWeightVector {
	tokens := tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	order := make([]string, 0, len(tokens))
	tf := make(map[string]int, len(tokens))
	for _, token := range tokens {
		if tf[token] == 0 {
			order = append(order, token)
		}
		tf[token]++
	}

	docLen := float64(len(tokens))
	lengthNorm := 1 - params.B + params.B*(docLen/stats.avgDocLength())

	out := make(TermWeightVector, 0, len(order))
	for _, token := range order {
		freq := float64(tf[token])
		weight := stats.IDF(token) * (freq * (params.K1 + 1)) / (freq + params.K1*lengthNorm)
		if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
			continue
		}
		out = append(out, TermWeight{Token: token, Weight: weight})
	}
	return out
}
