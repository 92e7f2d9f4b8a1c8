package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

var (
	// Transient errors are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Permanent errors fail fast but still count against the breaker.
	Permanent = ErrorClassification{RecordFailure: true}
	// Ignored errors are the caller's fault or choice and leave the breaker alone.
	Ignored = ErrorClassification{}
)

// StatusError is a non-2xx answer from an HTTP backend.
type StatusError struct {
	Backend    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "backend status error"
	}
	msg := fmt.Sprintf("%s %s status: %s", e.Backend, e.Operation, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

// AsStatusError reports whether err carries a StatusError and returns it.
func AsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

// StatusClassifier builds a classifier for HTTP backends. Status codes in retryable are
// transient, 5xx codes outside it are permanent, anything else is ignored. Network errors
// are transient.
func StatusClassifier(retryable ...int) ErrorClassifier {
	set := make(map[int]struct{}, len(retryable))
	for _, code := range retryable {
		set[code] = struct{}{}
	}
	return func(err error) ErrorClassification {
		if class, ok := classifyCommon(err); ok {
			return class
		}
		if statusErr, ok := AsStatusError(err); ok {
			if _, transient := set[statusErr.StatusCode]; transient {
				return Transient
			}
			if statusErr.StatusCode >= 500 {
				return Permanent
			}
			return Ignored
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return Transient
		}
		return Permanent
	}
}

// SentinelClassifier treats errors matching any of transient as retryable.
func SentinelClassifier(transient ...error) ErrorClassifier {
	return func(err error) ErrorClassification {
		if class, ok := classifyCommon(err); ok {
			return class
		}
		for _, target := range transient {
			if errors.Is(err, target) {
				return Transient
			}
		}
		return Permanent
	}
}

func classifyCommon(err error) (ErrorClassification, bool) {
	switch {
	case err == nil:
		return Ignored, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Ignored, true
	case IsCircuitOpen(err):
		return Transient, true
	default:
		return ErrorClassification{}, false
	}
}

// WrapTemporary marks err as domain.ErrTemporary when classifier deems it retryable.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = defaultClassifier
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
