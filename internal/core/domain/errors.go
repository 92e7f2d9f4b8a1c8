package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidInput         = errors.New("invalid input")
	ErrAllChannelsFailed    = errors.New("all retrieval channels failed")
	ErrSnapshotNotFound     = errors.New("corpus snapshot not found")
	ErrPassageNotFound      = errors.New("passage not found")
	ErrTemporary            = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

func invalidConfig(field, format string, args ...any) error {
	return WrapError(ErrInvalidConfiguration, field, fmt.Errorf(format, args...))
}
