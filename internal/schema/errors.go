package schema

import (
	"fmt"
	"strings"
)

// Reason classifies why a field failed a contract
type Reason string

const (
	ReasonMissing      Reason = "missing"
	ReasonWrongType    Reason = "wrong_type"
	ReasonConstraint   Reason = "constraint"
	ReasonUnknownField Reason = "unknown_field"
)

// FieldError describes one failing field of a payload
type FieldError struct {
	Field   string `json:"field"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func (fe FieldError) String() string {
	if fe.Field == "" {
		return fe.Message
	}
	return fe.Field + ": " + fe.Message
}

// ValidationError is returned when a payload does not satisfy an insert contract
type ValidationError struct {
	Entity string       `json:"entity"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fe.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// Has reports whether the named field failed for the given reason
func (e *ValidationError) Has(field string, reason Reason) bool {
	for _, fe := range e.Fields {
		if fe.Field == field && fe.Reason == reason {
			return true
		}
	}
	return false
}
