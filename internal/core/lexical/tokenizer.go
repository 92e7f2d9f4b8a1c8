package lexical

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTokenLength = 2

// DefaultStopwords is narrower than generic English lists: negations and short
// legal abbreviations survive tokenization.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "were", "will", "with",
}

type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer builds a tokenizer with the given stopword set. A nil set means DefaultStopwords;
// an empty non-nil set disables stopword removal.
func NewTokenizer(stopwords []string) *Tokenizer {
	if stopwords == nil {
		stopwords = DefaultStopwords
	}
	set := make(map[string]struct{}, len(stopwords))
	for _, word := range stopwords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		set[word] = struct{}{}
	}
	return &Tokenizer{stopwords: set}
}

func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, token := range fields {
		if utf8.RuneCountInString(token) < minTokenLength {
			continue
		}
		if _, stop := t.stopwords[token]; stop {
			continue
		}
		out = append(out, token)
	}
	return out
}

func (t *Tokenizer) IsStopword(token string) bool {
	_, ok := t.stopwords[strings.ToLower(token)]
	return ok
}
