package student

import (
	"errors"
	"fmt"
)

// Kind classifies a student operation failure. Handlers map kinds to HTTP
// statuses; nothing inspects message text.
type Kind int

const (
	Failure Kind = iota
	NotFound
	DuplicateEmail
	Validation
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case DuplicateEmail:
		return "duplicate_email"
	case Validation:
		return "validation"
	default:
		return "failure"
	}
}

var (
	ErrInvalidBody = errors.New("invalid request body")
	ErrInvalidID   = errors.New("invalid student ID")
)

// Error is returned by the repository and service. Op names the operation in
// progressive form ("creating student") and is used in Failure messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case NotFound:
		return "Student not found"
	case DuplicateEmail:
		return "Email already exists"
	}
	if e.Err == nil {
		return fmt.Sprintf("Error %s", e.Op)
	}
	return fmt.Sprintf("Error %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every rejected field of a payload.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	return "Validation failed"
}

// KindOf returns the Kind of err, Failure for anything unclassified.
func KindOf(err error) Kind {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return Validation
	}
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return Failure
}
