package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
	ErrFormat          = errors.New("invalid format")
	ErrStorage         = errors.New("storage failure")
)

func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func Unauthorized(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrUnauthorized)
}

func InvalidArgument(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidArgument)
}

func InvalidState(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidState)
}

func Format(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrFormat)
}

func Storage(msg string, err error) error {
	return fmt.Errorf("%s: %v: %w", msg, err, ErrStorage)
}
