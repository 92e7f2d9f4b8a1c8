package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

type failingAuditLog struct{ calls int }

func (f *failingAuditLog) RecordSearch(context.Context, domain.SearchAuditEvent) error {
	f.calls++
	return errors.New("broker unavailable")
}

func TestAuditedSearcherRecordsCompletedSearch(t *testing.T) {
	lex, emb, dense := scenarioChannels()
	dense.err = errors.New("qdrant down")
	uc, err := NewSearchUseCase(newTestModel(t), lex, emb, dense, nil, nil, SearchOptions{})
	if err != nil {
		t.Fatalf("new usecase: %v", err)
	}
	audit := &auditLogFake{}
	searcher := NewAuditedSearcher(uc, audit)

	req := newSearchRequest("breach of lease")
	req.RequestID = "req-1"
	req.Filter = domain.SearchFilter{CaseID: "case-7"}
	resp, err := searcher.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(audit.events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(audit.events))
	}
	event := audit.events[0]
	if event.RequestID != "req-1" || event.Filter.CaseID != "case-7" || event.Query != "breach of lease" {
		t.Fatalf("unexpected request fields: %+v", event)
	}
	if len(event.ResultIDs) != len(resp.Results) || event.TotalBeforeFiltering != resp.TotalBeforeFiltering {
		t.Fatalf("audit does not match response: %+v", event)
	}
	if len(event.DegradedChannels) != 1 || event.DegradedChannels[0] != domain.ChannelSemantic {
		t.Fatalf("expected semantic channel reported degraded, got %v", event.DegradedChannels)
	}
}

func TestAuditedSearcherSkipsFailedSearches(t *testing.T) {
	lex, emb, dense := scenarioChannels()
	lex.err = errors.New("qdrant down")
	dense.err = errors.New("qdrant down")
	uc, _ := NewSearchUseCase(newTestModel(t), lex, emb, dense, nil, nil, SearchOptions{})
	audit := &auditLogFake{}

	_, err := NewAuditedSearcher(uc, audit).Search(context.Background(), newSearchRequest("breach"))
	if !domain.IsKind(err, domain.ErrAllChannelsFailed) {
		t.Fatalf("expected all channels failed, got %v", err)
	}
	if len(audit.events) != 0 {
		t.Fatalf("failed search must not be audited, got %+v", audit.events)
	}
}

func TestAuditedSearcherIgnoresAuditFailure(t *testing.T) {
	lex, emb, dense := scenarioChannels()
	uc, _ := NewSearchUseCase(newTestModel(t), lex, emb, dense, nil, nil, SearchOptions{})
	audit := &failingAuditLog{}

	resp, err := NewAuditedSearcher(uc, audit).Search(context.Background(), newSearchRequest("breach"))
	if err != nil || resp == nil {
		t.Fatalf("audit failure must not fail the search: resp=%v err=%v", resp, err)
	}
	if audit.calls != 1 {
		t.Fatalf("expected one audit attempt, got %d", audit.calls)
	}
}
