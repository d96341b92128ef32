//go:build integration

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/pkg/database"
)

var (
	sharedDB     *sql.DB
	sharedDBOnce sync.Once
	sharedDBErr  error
)

// testDB starts one PostgreSQL container per test run and applies the embedded migrations
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedDBOnce.Do(func() {
		sharedDB, sharedDBErr = setupDB()
	})
	if sharedDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedDBErr)
	}
	return sharedDB
}

func setupDB() (*sql.DB, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "insightdash",
				"POSTGRES_USER":     "insightdash",
				"POSTGRES_PASSWORD": "test_password",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := &database.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "insightdash",
		Password: "test_password",
		Database: "insightdash",
		SSLMode:  "disable",
	}
	if err := database.RunMigrations(cfg.DSN(), nil); err != nil {
		return nil, err
	}

	pool, err := database.NewConnectionPool(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	return pool.GetDB(), nil
}

func createUser(t *testing.T, db *sql.DB, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Password: "$2a$10$hash"}
	require.NoError(t, NewPostgresUserRepository(db, nil).Create(context.Background(), u))
	return u
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestUserUsernameUnique(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresUserRepository(db, nil)

	name := uniqueName("demo")
	first := createUser(t, db, name)
	assert.NotZero(t, first.ID)
	assert.Equal(t, domain.RoleUser, first.Role)
	assert.True(t, first.IsActive)

	err := repo.Create(ctx, &domain.User{Username: name, Password: "other"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConstraint(err, apperrors.UniqueViolation))

	stored, err := repo.GetByUsername(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "$2a$10$hash", stored.Password)
}

func TestUserDeactivate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresUserRepository(db, nil)

	u := createUser(t, db, uniqueName("gone"))
	require.NoError(t, repo.Deactivate(ctx, u.ID))

	_, err := repo.GetByUsername(ctx, u.Username)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, byID.IsActive)

	assert.ErrorIs(t, repo.Deactivate(ctx, -1), apperrors.ErrNotFound)
}

func TestSessions(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresSessionRepository(db, nil)
	u := createUser(t, db, uniqueName("sess"))

	now := time.Now()
	live := &domain.Session{SID: uniqueName("live"), Sess: domain.SessionData{UserID: u.ID, Username: u.Username}, Expire: now.Add(time.Hour)}
	stale := &domain.Session{SID: uniqueName("stale"), Sess: domain.SessionData{UserID: u.ID}, Expire: now.Add(-time.Hour)}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, stale))

	got, err := repo.Get(ctx, live.SID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, got.Sess.Username)

	removed, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))

	_, err = repo.Get(ctx, stale.SID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, repo.DeleteByUser(ctx, u.ID))
	_, err = repo.Get(ctx, live.SID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWarehouseOwnershipAndChecks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresWarehouseRepository(db, nil)
	owner := createUser(t, db, uniqueName("owner"))
	other := createUser(t, db, uniqueName("other"))

	w := &domain.Warehouse{Name: "wh", Size: "Small", Status: domain.WarehouseSuspended, CreditsPerHour: decimal.RequireFromString("2.50"), Nodes: 1, AutoSuspend: true}
	w.AssignOwner(owner.ID)
	require.NoError(t, repo.Create(ctx, w))

	got, err := repo.Get(ctx, owner.ID, w.ID)
	require.NoError(t, err)
	assert.True(t, got.CreditsPerHour.Equal(decimal.RequireFromString("2.5")))

	_, err = repo.Get(ctx, other.ID, w.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	list, err := repo.List(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	bad := &domain.Warehouse{Name: "neg", Size: "Small", Status: domain.WarehouseSuspended, CreditsPerHour: decimal.NewFromInt(-1), Nodes: 1}
	bad.AssignOwner(owner.ID)
	err = repo.Create(ctx, bad)
	assert.True(t, apperrors.IsConstraint(err, apperrors.CheckViolation))

	huge := &domain.Warehouse{Name: "huge", Size: "Small", Status: domain.WarehouseSuspended, CreditsPerHour: decimal.NewFromInt(1), Nodes: 3_000_000_000}
	huge.AssignOwner(owner.ID)
	assert.True(t, apperrors.IsConstraint(repo.Create(ctx, huge), apperrors.RangeViolation))

	assert.ErrorIs(t, repo.Delete(ctx, other.ID, w.ID), apperrors.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, owner.ID, w.ID))
}

func TestDeleteRestrictedWhileReferenced(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	owner := createUser(t, db, uniqueName("charts"))

	sources := NewPostgresDataSourceRepository(db, nil)
	ds := &domain.DataSource{Name: "sales", Type: domain.SourceCSV, Status: domain.StatusProcessing, UserID: owner.ID}
	require.NoError(t, sources.Create(ctx, ds))

	charts := NewPostgresChartRepository(db, nil)
	chart := &domain.Chart{Name: "rev", Type: "bar", Config: json.RawMessage(`{"x":"month"}`), DataSourceID: ds.ID, UserID: owner.ID}
	require.NoError(t, charts.Create(ctx, chart))

	err := sources.Delete(ctx, owner.ID, ds.ID)
	assert.True(t, apperrors.IsConstraint(err, apperrors.ForeignKeyViolation))

	orphan := &domain.Chart{Name: "x", Type: "bar", Config: json.RawMessage(`{}`), DataSourceID: -5, UserID: owner.ID}
	assert.True(t, apperrors.IsConstraint(charts.Create(ctx, orphan), apperrors.ForeignKeyViolation))

	require.NoError(t, charts.Delete(ctx, owner.ID, chart.ID))
	require.NoError(t, sources.Delete(ctx, owner.ID, ds.ID))
}

func TestCompanyRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresCompanyRepository(db, nil)
	owner := createUser(t, db, uniqueName("pe"))

	founded := domain.NewDate(2015, time.March, 9)
	sector := "Software"
	c := &domain.Company{
		Name:        "Acme",
		Sector:      &sector,
		FoundedDate: &founded,
		Revenue:     decimal.NewNullDecimal(decimal.RequireFromString("1000000.50")),
		UserID:      owner.ID,
	}
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.Get(ctx, owner.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "2015-03-09", got.FoundedDate.String())
	assert.True(t, got.Revenue.Valid)
	assert.False(t, got.EBITDA.Valid)
	assert.Nil(t, got.Region)

	got.Region = &sector
	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, c.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestConversationMessages(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresConversationRepository(db, nil)
	owner := createUser(t, db, uniqueName("chat"))

	conv := &domain.AIConversation{UserID: owner.ID}
	require.NoError(t, repo.Create(ctx, conv))

	got, err := repo.Get(ctx, owner.ID, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
	assert.Nil(t, got.Context)

	got.Messages = append(got.Messages, domain.Message{Role: "user", Content: "hi", Timestamp: time.Now().UTC()})
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.Get(ctx, owner.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, again.Messages, 1)
	assert.Equal(t, "hi", again.Messages[0].Content)

	reply := domain.Message{Role: "assistant", Content: "hello", Timestamp: time.Now().UTC()}
	appended, err := repo.AppendMessages(ctx, owner.ID, conv.ID, []domain.Message{reply})
	require.NoError(t, err)
	require.Len(t, appended.Messages, 2)
	assert.Equal(t, "hello", appended.Messages[1].Content)

	other := createUser(t, db, uniqueName("chat-other"))
	_, err = repo.AppendMessages(ctx, other.ID, conv.ID, []domain.Message{reply})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDataSourcesListByStatus(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresDataSourceRepository(db, nil)
	owner := createUser(t, db, uniqueName("ingest"))

	pending := &domain.DataSource{Name: "pending", Type: domain.SourceCSV, Status: domain.StatusProcessing, UserID: owner.ID}
	require.NoError(t, repo.Create(ctx, pending))
	done := &domain.DataSource{Name: "done", Type: domain.SourceCSV, Status: domain.StatusReady, UserID: owner.ID}
	require.NoError(t, repo.Create(ctx, done))

	list, err := repo.ListByStatus(ctx, domain.StatusProcessing)
	require.NoError(t, err)
	var ids []int64
	for _, ds := range list {
		assert.Equal(t, domain.StatusProcessing, ds.Status)
		ids = append(ids, ds.ID)
	}
	assert.Contains(t, ids, pending.ID)
	assert.NotContains(t, ids, done.ID)
}

func TestQueryHistoryAndDashboards(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	owner := createUser(t, db, uniqueName("qh"))

	w := &domain.Warehouse{Name: "wh", Size: "Small", Status: domain.WarehouseActive, CreditsPerHour: decimal.NewFromInt(1), Nodes: 1}
	w.AssignOwner(owner.ID)
	require.NoError(t, NewPostgresWarehouseRepository(db, nil).Create(ctx, w))

	history := NewPostgresQueryHistoryRepository(db, nil)
	q := &domain.QueryHistory{Query: "select 1", Status: domain.QueryRunning, WarehouseID: w.ID, UserID: owner.ID}
	require.NoError(t, history.Create(ctx, q))

	got, err := history.Get(ctx, owner.ID, q.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Duration)
	assert.False(t, got.CreditsUsed.Valid)

	dashboards := NewPostgresDashboardRepository(db, nil)
	d := &domain.Dashboard{Name: "main", Layout: json.RawMessage(`[{"chartId":1}]`), UserID: owner.ID}
	require.NoError(t, dashboards.Create(ctx, d))
	list, err := dashboards.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `[{"chartId":1}]`, string(list[0].Layout))
}
