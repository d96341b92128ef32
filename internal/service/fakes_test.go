package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[int64]*domain.User{}}
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Username == u.Username {
			return &apperrors.ConstraintError{Kind: apperrors.UniqueViolation, Constraint: "users_username_key"}
		}
	}
	m.nextID++
	u.ID = m.nextID
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	u.IsActive = true
	u.CreatedAt = time.Now()
	stored := *u
	m.byID[u.ID] = &stored
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username && u.IsActive {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Password = hash
	return nil
}

func (m *memUserRepo) Deactivate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.IsActive = false
	return nil
}

func (m *memUserRepo) List(_ context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.User{}
	for _, u := range m.byID {
		c := *u
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *domain.User) int { return int(a.ID - b.ID) })
	return out, nil
}

type memSessionRepo struct {
	mu    sync.Mutex
	bySID map[string]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{bySID: map[string]*domain.Session{}}
}

func (m *memSessionRepo) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.bySID[s.SID] = &c
	return nil
}

func (m *memSessionRepo) Get(_ context.Context, sid string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.bySID[sid]; ok {
		c := *s
		return &c, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *memSessionRepo) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySID[sid]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.bySID, sid)
	return nil
}

func (m *memSessionRepo) DeleteByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid, s := range m.bySID {
		if s.Sess.UserID == userID {
			delete(m.bySID, sid)
		}
	}
	return nil
}

func (m *memSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for sid, s := range m.bySID {
		if s.Expired(now) {
			delete(m.bySID, sid)
			n++
		}
	}
	return n, nil
}

func (m *memSessionRepo) CountActive(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.bySID {
		if !s.Expired(now) {
			n++
		}
	}
	return n, nil
}

// memOwned is an in-memory domain.OwnedRepository keyed by id
type memOwned[T any, P ownedPtr[T]] struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]T
	setID  func(P, int64)
	// fail, when set, is returned by every write
	fail error
}

type ownedPtr[T any] interface {
	*T
	domain.Resource
}

func newMemOwned[T any, P ownedPtr[T]](setID func(P, int64)) *memOwned[T, P] {
	return &memOwned[T, P]{rows: map[int64]T{}, setID: setID}
}

func (m *memOwned[T, P]) Create(_ context.Context, item *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.nextID++
	m.setID(P(item), m.nextID)
	m.rows[m.nextID] = *item
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
	out := []*T{}
	for id := int64(1); id <= m.nextID; id++ {
		row, ok := m.rows[id]
		if ok && P(&row).OwnerID() == userID {
			out = append(out, &row)
		}
	}
	return out, nil
}

func (m *memOwned[T, P]) Update(_ context.Context, item *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	p := P(item)
	row, ok := m.rows[p.ResourceID()]
	if !ok || P(&row).OwnerID() != p.OwnerID() {
		return apperrors.ErrNotFound
	}
	m.rows[p.ResourceID()] = *item
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

func (m *memOwned[T, P]) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memDataSources struct {
	*memOwned[domain.DataSource, *domain.DataSource]
}

func (m memDataSources) ListByStatus(_ context.Context, status string) ([]*domain.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.DataSource{}
	for id := int64(1); id <= m.nextID; id++ {
		if row, ok := m.rows[id]; ok && row.Status == status {
			out = append(out, &row)
		}
	}
	return out, nil
}

type memConversations struct {
	*memOwned[domain.AIConversation, *domain.AIConversation]
}

func (m memConversations) AppendMessages(_ context.Context, userID, id int64, messages []domain.Message) (*domain.AIConversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	row, ok := m.rows[id]
	if !ok || row.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	row.Messages = append(slices.Clip(row.Messages), messages...)
	m.rows[id] = row
	return &row, nil
}
