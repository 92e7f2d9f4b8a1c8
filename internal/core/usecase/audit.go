package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

// AuditedSearcher records one audit event per completed search of the wrapped searcher.
// It sits outside any response cache so hits and shared results are recorded under the
// caller's own request id.
type AuditedSearcher struct {
	inner ports.EvidenceSearcher
	audit ports.SearchAuditLog
	now   func() time.Time
}

func NewAuditedSearcher(inner ports.EvidenceSearcher, audit ports.SearchAuditLog) *AuditedSearcher {
	return &AuditedSearcher{inner: inner, audit: audit, now: time.Now}
}

func (s *AuditedSearcher) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	start := s.now()
	resp, err := s.inner.Search(ctx, req)
	if err != nil || s.audit == nil {
		return resp, err
	}

	if err := s.audit.RecordSearch(ctx, s.event(req, resp, s.now().Sub(start))); err != nil {
		slog.Warn("search_audit_failed", "request_id", req.RequestID, "error", err)
	}
	return resp, nil
}

func (s *AuditedSearcher) event(req domain.SearchRequest, resp *domain.SearchResponse, elapsed time.Duration) domain.SearchAuditEvent {
	event := domain.SearchAuditEvent{
		RequestID:            req.RequestID,
		Query:                req.Query,
		Filter:               req.Filter,
		TopK:                 req.TopK,
		ScoreThreshold:       req.ScoreThreshold,
		ResultIDs:            make([]string, 0, len(resp.Results)),
		TotalBeforeFiltering: resp.TotalBeforeFiltering,
		TotalAfterFiltering:  resp.TotalAfterFiltering,
		SnapshotVersion:      resp.Diagnostics.SnapshotVersion,
		DurationMS:           float64(elapsed.Microseconds()) / 1000.0,
		OccurredAt:           s.now().UTC(),
	}
	for _, c := range resp.Results {
		event.ResultIDs = append(event.ResultIDs, c.ID)
	}
	for _, ch := range domain.AllChannels {
		if report, ok := resp.Diagnostics.Channels[ch]; ok && (report.State == domain.ChannelFailed || report.State == domain.ChannelTimeout) {
			event.DegradedChannels = append(event.DegradedChannels, ch)
		}
	}
	return event
}
