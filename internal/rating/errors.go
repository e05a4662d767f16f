package rating

import "errors"

// Sentinels shared by both store implementations; the service wraps them
// with messages carrying canonical names, so errors.Is keeps working at
// the HTTP boundary.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// NotFoundError names the missing subject, item, or pair in canonical case.
type NotFoundError struct {
	Detail string
}

func (e *NotFoundError) Error() string { return e.Detail }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports an attempted duplicate rating for a pair.
type ConflictError struct {
	Detail string
}

func (e *ConflictError) Error() string { return e.Detail }
func (e *ConflictError) Unwrap() error { return ErrConflict }
