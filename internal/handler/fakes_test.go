package handler

import (
	"context"
	"sync"
	"time"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

type memUsers struct {
	mu   sync.Mutex
	rows []*domain.User
}

func (m *memUsers) find(pred func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if pred(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Username == u.Username {
			return &apperrors.ConstraintError{Kind: apperrors.UniqueViolation, Constraint: "users_username_key"}
		}
	}
	u.ID = int64(len(m.rows) + 1)
	u.Role = domain.RoleUser
	u.IsActive = true
	u.CreatedAt = time.Now()
	c := *u
	m.rows = append(m.rows, &c)
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Username == username && u.IsActive })
}

func (m *memUsers) set(id int64, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.ID == id {
			fn(u)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *memUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	return m.set(id, func(u *domain.User) { u.Password = hash })
}

func (m *memUsers) Deactivate(_ context.Context, id int64) error {
	return m.set(id, func(u *domain.User) { u.IsActive = false })
}

func (m *memUsers) List(_ context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.User, 0, len(m.rows))
	for _, u := range m.rows {
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

type memSessions struct {
	mu   sync.Mutex
	rows map[string]domain.Session
}

func (m *memSessions) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.SID] = *s
	return nil
}

func (m *memSessions) Get(_ context.Context, sid string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[sid]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, sid)
	return nil
}

func (m *memSessions) DeleteByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid, s := range m.rows {
		if s.Sess.UserID == userID {
			delete(m.rows, sid)
		}
	}
	return nil
}

func (m *memSessions) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memSessions) CountActive(context.Context, time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

// memOwned stores owned rows by id; setID writes the generated key
type memOwned[T any, P interface {
	*T
	domain.Resource
}] struct {
	mu    sync.Mutex
	next  int64
	rows  map[int64]T
	setID func(P, int64)
}

func (m *memOwned[T, P]) Create(_ context.Context, item *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.setID(P(item), m.next)
	m.rows[m.next] = *item
	return nil
}

func (m *memOwned[T, P]) Get(_ context.Context, userID, id int64) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || P(&row).OwnerID() != userID {
		return nil, apperrors.ErrNotFound
	}
	return &row, nil
}

func (m *memOwned[T, P]) List(_ context.Context, userID int64) ([]*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*T
	for id := int64(1); id <= m.next; id++ {
		if row, ok := m.rows[id]; ok && P(&row).OwnerID() == userID {
			out = append(out, &row)
		}
	}
	return out, nil
}

func (m *memOwned[T, P]) Update(_ context.Context, item *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := P(item).ResourceID()
	row, ok := m.rows[id]
	if !ok || P(&row).OwnerID() != P(item).OwnerID() {
		return apperrors.ErrNotFound
	}
	m.rows[id] = *item
	return nil
}

func (m *memOwned[T, P]) Delete(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || P(&row).OwnerID() != userID {
		return apperrors.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}
