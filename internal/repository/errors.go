package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// PostgreSQL error codes surfaced as constraint violations
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNumericOutOfRange   = "22003"
)

// translate maps driver errors onto the application taxonomy
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return &apperrors.ConstraintError{Kind: apperrors.UniqueViolation, Constraint: pqErr.Constraint, Err: err}
		case codeForeignKeyViolation:
			return &apperrors.ConstraintError{Kind: apperrors.ForeignKeyViolation, Constraint: pqErr.Constraint, Err: err}
		case codeCheckViolation:
			return &apperrors.ConstraintError{Kind: apperrors.CheckViolation, Constraint: pqErr.Constraint, Err: err}
		case codeNumericOutOfRange:
			return &apperrors.ConstraintError{Kind: apperrors.RangeViolation, Constraint: pqErr.Column, Err: err}
		}
	}
	return err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", op, translate(err))
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	return &ni.Int64
}

// document returns the value bound to a JSONB column. lib/pq sends []byte as bytea, so
// documents travel as text; empty and null documents are stored as NULL.
func document(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

func nullDate(d *domain.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func datePtr(nt sql.NullTime) *domain.Date {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &domain.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}
