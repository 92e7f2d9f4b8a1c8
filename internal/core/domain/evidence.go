package domain

import (
	"fmt"
	"time"
)

// EvidenceKind tells which kind of case material a passage was cut from.
type EvidenceKind string

const (
	KindDocument      EvidenceKind = "document"
	KindTranscript    EvidenceKind = "transcript"
	KindCommunication EvidenceKind = "communication"
)

func (k EvidenceKind) Valid() bool {
	switch k {
	case KindDocument, KindTranscript, KindCommunication:
		return true
	default:
		return false
	}
}

// Passage is the retrievable unit of evidence text.
type Passage struct {
	ID         string       `json:"id"`
	CaseID     string       `json:"case_id"`
	DocumentID string       `json:"document_id"`
	Kind       EvidenceKind `json:"kind"`
	Position   int          `json:"position"`
	Text       string       `json:"text"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Payload is the opaque projection carried through retrieval and returned to callers.
func (p Passage) Payload() map[string]any {
	return map[string]any{
		"case_id":     p.CaseID,
		"document_id": p.DocumentID,
		"kind":        string(p.Kind),
		"position":    p.Position,
		"text":        p.Text,
	}
}

type SearchFilter struct {
	CaseID      string         `json:"case_id,omitempty"`
	Kinds       []EvidenceKind `json:"kinds,omitempty"`
	DocumentIDs []string       `json:"document_ids,omitempty"`
}

func (f SearchFilter) Empty() bool {
	return f.CaseID == "" && len(f.Kinds) == 0 && len(f.DocumentIDs) == 0
}

func (f SearchFilter) Validate() error {
	for _, kind := range f.Kinds {
		if !kind.Valid() {
			return WrapError(ErrInvalidInput, "filter.kinds", errUnknownKind(kind))
		}
	}
	return nil
}

func errUnknownKind(kind EvidenceKind) error {
	return fmt.Errorf("unknown evidence kind %q", kind)
}
