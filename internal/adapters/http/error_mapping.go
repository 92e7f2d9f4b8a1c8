package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSnapshotNotFound), domain.IsKind(err, domain.ErrPassageNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAllChannelsFailed), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
