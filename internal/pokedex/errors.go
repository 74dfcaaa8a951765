package pokedex

import (
	"errors"
	"fmt"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamBadStatus   = errors.New("upstream bad status")
	ErrUpstreamBadPayload  = errors.New("upstream bad payload")
)

// ValidationError reports bad or missing caller input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports a well-formed lookup that matched nothing.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// UpstreamError reports a failed or malformed call to the upstream API.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream %s: %v", e.Op, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// StorageError reports a failed write of the persisted state.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}
