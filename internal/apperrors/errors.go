// Package apperrors holds the error taxonomy shared by repositories, services and handlers.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrUnavailable        = errors.New("service unavailable")
	ErrInvalidTransition  = errors.New("invalid state transition")
)

// ConstraintKind classifies a storage constraint violation
type ConstraintKind string

const (
	UniqueViolation     ConstraintKind = "unique_violation"
	ForeignKeyViolation ConstraintKind = "foreign_key_violation"
	CheckViolation      ConstraintKind = "check_violation"
	RangeViolation      ConstraintKind = "numeric_out_of_range"
)

// ConstraintError is a persistence failure caused by a database constraint
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a constraint violation of the given kind
func IsConstraint(err error, kind ConstraintKind) bool {
	var ce *ConstraintError
	return errors.As(err, &ce) && ce.Kind == kind
}

// UpstreamError wraps a failure of an external collaborator (assistant, file parser).
// Its message is passed through to the caller unchanged.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as a collaborator failure unless it already is one
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Service: service, Err: err}
}
