package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrAgentNotFound   = errors.New("agent not found")
	ErrConfiguration   = errors.New("missing configuration")
	ErrRateLimited     = errors.New("rate limited")
	ErrBillingRequired = errors.New("billing required")
	ErrUpstream        = errors.New("upstream failure")
	ErrTemporary       = errors.New("temporary failure")
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
