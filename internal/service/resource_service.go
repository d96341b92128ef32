package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/observability/metrics"
	"github.com/aryan0dhankhar/insightdash/internal/schema"
	"github.com/aryan0dhankhar/insightdash/internal/security/audit"
	"github.com/aryan0dhankhar/insightdash/internal/security/identity"
)

// Guard enforces entity rules a contract cannot express. prev is nil on create.
type Guard[T any] func(ctx context.Context, userID int64, prev, next *T) error

// ResourceOptions configure a ResourceService
type ResourceOptions[T any] struct {
	Guard Guard[T]
	// OnChange runs after every successful write for the owning user
	OnChange func(ctx context.Context, userID int64)
}

// Owned constrains *T to the domain.Resource methods
type Owned[T any] interface {
	*T
	domain.Resource
}

// ResourceService implements CRUD for one user-owned entity. Payloads are
// validated against the entity's contracts and the owner always comes from
// the caller's session.
type ResourceService[T any, P Owned[T]] struct {
	entity    *schema.Entity
	contracts domain.Contracts
	repo      domain.OwnedRepository[T]
	opts      ResourceOptions[T]
	audit     *audit.Logger
	logger    *slog.Logger
}

// NewResourceService creates a service for the entity backed by repo
func NewResourceService[T any, P Owned[T]](
	entity *schema.Entity,
	repo domain.OwnedRepository[T],
	opts ResourceOptions[T],
	logger *slog.Logger,
) *ResourceService[T, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceService[T, P]{
		entity:    entity,
		contracts: domain.OwnedContracts(entity),
		repo:      repo,
		opts:      opts,
		audit:     audit.NewLogger(logger),
		logger:    logger.With(slog.String("entity", entity.Name())),
	}
}

func (s *ResourceService[T, P]) Entity() *schema.Entity { return s.entity }

func caller(ctx context.Context) (int64, error) {
	p, ok := identity.FromContext(ctx)
	if !ok {
		return 0, apperrors.ErrUnauthenticated
	}
	return p.UserID, nil
}

func (s *ResourceService[T, P]) invalid(err error) error {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		metrics.ObserveValidationFailure(s.entity.Name())
	}
	return err
}

// Create validates a payload against the create contract and stores it for the caller
func (s *ResourceService[T, P]) Create(ctx context.Context, payload []byte) (*T, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	fields, err := s.contracts.Create.Parse(payload)
	if err != nil {
		return nil, s.invalid(err)
	}
	s.contracts.Create.ApplyDefaults(fields)

	item := new(T)
	if err := s.contracts.Create.Assign(fields, item); err != nil {
		return nil, s.invalid(err)
	}
	P(item).AssignOwner(userID)

	if s.opts.Guard != nil {
		if err := s.opts.Guard(ctx, userID, nil, item); err != nil {
			return nil, s.invalid(err)
		}
	}

	err = s.repo.Create(ctx, item)
	s.audit.LogMutation(ctx, "create", s.entity.Table(), P(item).ResourceID(), err)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, userID)
	return item, nil
}

func (s *ResourceService[T, P]) Get(ctx context.Context, id int64) (*T, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID, id)
}

func (s *ResourceService[T, P]) List(ctx context.Context) ([]*T, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userID)
}

// Replace overwrites every writable field; absent optional fields are reset
func (s *ResourceService[T, P]) Replace(ctx context.Context, id int64, payload []byte) (*T, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	fields, err := s.contracts.Create.Parse(payload)
	if err != nil {
		return nil, s.invalid(err)
	}
	s.contracts.Create.ApplyDefaults(fields)
	fields["id"] = id

	next := new(T)
	if err := s.contracts.Create.Assign(fields, next); err != nil {
		return nil, s.invalid(err)
	}
	return s.update(ctx, userID, prev, next)
}

// Patch overlays the payload's fields on the stored row
func (s *ResourceService[T, P]) Patch(ctx context.Context, id int64, payload []byte) (*T, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	fields, err := s.contracts.Patch.Parse(payload)
	if err != nil {
		return nil, s.invalid(err)
	}

	current, err := json.Marshal(prev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", s.entity.Name(), err)
	}
	next := new(T)
	if err := json.Unmarshal(current, next); err != nil {
		return nil, fmt.Errorf("failed to copy %s: %w", s.entity.Name(), err)
	}
	if err := s.contracts.Patch.Assign(fields, next); err != nil {
		return nil, s.invalid(err)
	}
	return s.update(ctx, userID, prev, next)
}

func (s *ResourceService[T, P]) update(ctx context.Context, userID int64, prev, next *T) (*T, error) {
	P(next).AssignOwner(userID)

	if s.opts.Guard != nil {
		if err := s.opts.Guard(ctx, userID, prev, next); err != nil {
			return nil, s.invalid(err)
		}
	}

	err := s.repo.Update(ctx, next)
	s.audit.LogMutation(ctx, "update", s.entity.Table(), P(next).ResourceID(), err)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, userID)
	return next, nil
}

func (s *ResourceService[T, P]) Delete(ctx context.Context, id int64) error {
	userID, err := caller(ctx)
	if err != nil {
		return err
	}

	err = s.repo.Delete(ctx, userID, id)
	s.audit.LogMutation(ctx, "delete", s.entity.Table(), id, err)
	if err != nil {
		return err
	}
	s.changed(ctx, userID)
	return nil
}

func (s *ResourceService[T, P]) changed(ctx context.Context, userID int64) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(ctx, userID)
	}
}
