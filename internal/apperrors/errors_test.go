package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstraintError(t *testing.T) {
	base := errors.New("pq: duplicate key")
	err := fmt.Errorf("failed to create user: %w", &ConstraintError{Kind: UniqueViolation, Constraint: "users_username_key", Err: base})

	assert.True(t, IsConstraint(err, UniqueViolation))
	assert.False(t, IsConstraint(err, ForeignKeyViolation))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "users_username_key")
}

func TestUpstreamPassesMessageThrough(t *testing.T) {
	err := Upstream("assistant", errors.New("rate limit reached"))
	assert.Equal(t, "rate limit reached", err.Error())

	var ue *UpstreamError
	assert.ErrorAs(t, err, &ue)
	assert.Equal(t, "assistant", ue.Service)
	assert.Same(t, err, Upstream("other", err))
	assert.NoError(t, Upstream("x", nil))
}
