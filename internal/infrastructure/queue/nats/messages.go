package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

type RefitRequest struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

type SnapshotPublished struct {
	Version     uint64    `json:"version"`
	PublishedAt time.Time `json:"published_at"`
}

func encodeRefitRequest(req RefitRequest) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal refit request: %w", err)
	}
	return data, nil
}

func decodeRefitRequest(data []byte) (RefitRequest, error) {
	var req RefitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return RefitRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode refit request", err)
	}
	return req, nil
}

func encodeSnapshotPublished(notice SnapshotPublished) ([]byte, error) {
	data, err := json.Marshal(notice)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot notice: %w", err)
	}
	return data, nil
}

func decodeSnapshotPublished(data []byte) (SnapshotPublished, error) {
	var notice SnapshotPublished
	if err := json.Unmarshal(data, &notice); err != nil {
		return SnapshotPublished{}, domain.WrapError(domain.ErrInvalidInput, "decode snapshot notice", err)
	}
	if notice.Version == 0 {
		return SnapshotPublished{}, domain.WrapError(domain.ErrInvalidInput, "decode snapshot notice", fmt.Errorf("version is required"))
	}
	return notice, nil
}
