package domain

import "time"

type SearchAuditEvent struct {
	RequestID            string       `json:"request_id,omitempty"`
	Query                string       `json:"query"`
	Filter               SearchFilter `json:"filter"`
	TopK                 int          `json:"top_k"`
	ScoreThreshold       float64      `json:"score_threshold"`
	ResultIDs            []string     `json:"result_ids"`
	TotalBeforeFiltering int          `json:"total_before_filtering"`
	TotalAfterFiltering  int          `json:"total_after_filtering"`
	DegradedChannels     []Channel    `json:"degraded_channels,omitempty"`
	SnapshotVersion      uint64       `json:"snapshot_version"`
	DurationMS           float64      `json:"duration_ms"`
	OccurredAt           time.Time    `json:"occurred_at"`
}
