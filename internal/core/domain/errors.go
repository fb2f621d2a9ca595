package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTemporary     = errors.New("temporary failure")
	ErrTraceNotFound = errors.New("trace document not found")

	ErrOracleUnavailable     = errors.New("oracle unavailable")
	ErrMalformedOracleOutput = errors.New("malformed oracle output")
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
