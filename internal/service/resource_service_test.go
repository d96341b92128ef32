package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/schema"
	"github.com/aryan0dhankhar/insightdash/internal/security/identity"
)

func asUser(id int64) context.Context {
	return identity.WithPrincipal(context.Background(), identity.Principal{UserID: id, Username: "u", Role: "user"})
}

func newWarehouseRepo() *memOwned[domain.Warehouse, *domain.Warehouse] {
	return newMemOwned[domain.Warehouse, *domain.Warehouse](func(w *domain.Warehouse, id int64) { w.ID = id })
}

func newDataSourceRepo() memDataSources {
	return memDataSources{newMemOwned[domain.DataSource, *domain.DataSource](func(d *domain.DataSource, id int64) { d.ID = id })}
}

func newCompanyRepo() *memOwned[domain.Company, *domain.Company] {
	return newMemOwned[domain.Company, *domain.Company](func(c *domain.Company, id int64) { c.ID = id })
}

func newConversationRepo() memConversations {
	return memConversations{newMemOwned[domain.AIConversation, *domain.AIConversation](func(c *domain.AIConversation, id int64) { c.ID = id })}
}

func requireValidation(t *testing.T, err error, field string, reason schema.Reason) {
	t.Helper()
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has(field, reason), "%v", verr)
}

func TestCreateAppliesDefaultsAndOwner(t *testing.T) {
	repo := newWarehouseRepo()
	svc := NewResourceService[domain.Warehouse, *domain.Warehouse](domain.WarehouseEntity, repo, ResourceOptions[domain.Warehouse]{}, nil)

	w, err := svc.Create(asUser(7), []byte(`{"name":"analytics"}`))
	require.NoError(t, err)
	assert.NotZero(t, w.ID)
	assert.Equal(t, "X-Small", w.Size)
	assert.Equal(t, domain.WarehouseSuspended, w.Status)
	assert.True(t, w.CreditsPerHour.Equal(decimal.RequireFromString("1.00")))
	assert.Equal(t, int64(1), w.Nodes)
	assert.True(t, w.AutoSuspend)
	require.NotNil(t, w.UserID)
	assert.Equal(t, int64(7), *w.UserID)
}

func TestCreateRejectsInvalidPayloads(t *testing.T) {
	repo := newWarehouseRepo()
	svc := NewResourceService[domain.Warehouse, *domain.Warehouse](domain.WarehouseEntity, repo, ResourceOptions[domain.Warehouse]{}, nil)
	ctx := asUser(1)

	_, err := svc.Create(ctx, []byte(`{"name":"wh","creditsPerHour":-1}`))
	requireValidation(t, err, "creditsPerHour", schema.ReasonConstraint)

	_, err = svc.Create(ctx, []byte(`{"name":"wh","userId":2}`))
	requireValidation(t, err, "userId", schema.ReasonUnknownField)

	_, err = svc.Create(ctx, []byte(`{"size":"Huge"}`))
	requireValidation(t, err, "name", schema.ReasonMissing)
	requireValidation(t, err, "size", schema.ReasonConstraint)

	assert.Zero(t, repo.count())

	_, err = svc.Create(context.Background(), []byte(`{"name":"wh"}`))
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestReadsAreOwnerScoped(t *testing.T) {
	repo := newWarehouseRepo()
	svc := NewResourceService[domain.Warehouse, *domain.Warehouse](domain.WarehouseEntity, repo, ResourceOptions[domain.Warehouse]{}, nil)

	w, err := svc.Create(asUser(1), []byte(`{"name":"mine"}`))
	require.NoError(t, err)

	_, err = svc.Get(asUser(2), w.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	list, err := svc.List(asUser(2))
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.ErrorIs(t, svc.Delete(asUser(2), w.ID), apperrors.ErrNotFound)
	_, err = svc.Patch(asUser(2), w.ID, []byte(`{"name":"stolen"}`))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.Delete(asUser(1), w.ID))
	assert.Zero(t, repo.count())
}

func TestPatchAndReplace(t *testing.T) {
	repo := newWarehouseRepo()
	svc := NewResourceService[domain.Warehouse, *domain.Warehouse](domain.WarehouseEntity, repo, ResourceOptions[domain.Warehouse]{}, nil)
	ctx := asUser(1)

	w, err := svc.Create(ctx, []byte(`{"name":"wh","size":"Large","nodes":4}`))
	require.NoError(t, err)

	patched, err := svc.Patch(ctx, w.ID, []byte(`{"status":"active"}`))
	require.NoError(t, err)
	assert.Equal(t, "wh", patched.Name)
	assert.Equal(t, "Large", patched.Size)
	assert.Equal(t, domain.WarehouseActive, patched.Status)
	assert.Equal(t, w.ID, patched.ID)

	_, err = svc.Patch(ctx, w.ID, []byte(`{"nodes":"many"}`))
	requireValidation(t, err, "nodes", schema.ReasonWrongType)

	replaced, err := svc.Replace(ctx, w.ID, []byte(`{"name":"renamed"}`))
	require.NoError(t, err)
	assert.Equal(t, w.ID, replaced.ID)
	assert.Equal(t, "renamed", replaced.Name)
	assert.Equal(t, "X-Small", replaced.Size)
	assert.Equal(t, domain.WarehouseSuspended, replaced.Status)

	_, err = svc.Replace(ctx, w.ID, []byte(`{}`))
	requireValidation(t, err, "name", schema.ReasonMissing)
}

func TestDataSourceStatusIsMonotonic(t *testing.T) {
	svc := NewResourceService[domain.DataSource, *domain.DataSource](domain.DataSourceEntity, newDataSourceRepo(),
		ResourceOptions[domain.DataSource]{Guard: DataSourceGuard}, nil)
	ctx := asUser(1)

	ds, err := svc.Create(ctx, []byte(`{"name":"sales","type":"csv"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, ds.Status)
	assert.Equal(t, int64(0), ds.RowCount)

	_, err = svc.Patch(ctx, ds.ID, []byte(`{"status":"ready","rowCount":10}`))
	require.NoError(t, err)

	_, err = svc.Patch(ctx, ds.ID, []byte(`{"status":"processing"}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = svc.Patch(ctx, ds.ID, []byte(`{"status":"error"}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = svc.Patch(ctx, ds.ID, []byte(`{"name":"renamed"}`))
	assert.NoError(t, err)
}

func TestQueryHistoryGuard(t *testing.T) {
	warehouses := newWarehouseRepo()
	svc := NewResourceService[domain.QueryHistory, *domain.QueryHistory](domain.QueryHistoryEntity,
		newMemOwned[domain.QueryHistory, *domain.QueryHistory](func(q *domain.QueryHistory, id int64) { q.ID = id }),
		ResourceOptions[domain.QueryHistory]{Guard: QueryHistoryGuard(warehouses)}, nil)

	mine := &domain.Warehouse{Name: "mine"}
	mine.AssignOwner(1)
	require.NoError(t, warehouses.Create(context.Background(), mine))
	theirs := &domain.Warehouse{Name: "theirs"}
	theirs.AssignOwner(2)
	require.NoError(t, warehouses.Create(context.Background(), theirs))

	ctx := asUser(1)
	_, err := svc.Create(ctx, []byte(`{"query":"select 1","warehouseId":`+jsonInt(theirs.ID)+`}`))
	requireValidation(t, err, "warehouseId", schema.ReasonConstraint)

	_, err = svc.Create(ctx, []byte(`{"query":"select 1","warehouseId":`+jsonInt(mine.ID)+`,"duration":5}`))
	requireValidation(t, err, "duration", schema.ReasonConstraint)

	q, err := svc.Create(ctx, []byte(`{"query":"select 1","warehouseId":`+jsonInt(mine.ID)+`}`))
	require.NoError(t, err)
	assert.Equal(t, domain.QueryRunning, q.Status)

	done, err := svc.Patch(ctx, q.ID, []byte(`{"status":"completed","duration":120,"rowsReturned":1,"creditsUsed":"0.000125"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(120), *done.Duration)
	assert.True(t, done.CreditsUsed.Valid)

	_, err = svc.Patch(ctx, q.ID, []byte(`{"status":"running","duration":null,"rowsReturned":null}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestChartRequiresOwnedDataSource(t *testing.T) {
	sources := newDataSourceRepo()
	svc := NewResourceService[domain.Chart, *domain.Chart](domain.ChartEntity,
		newMemOwned[domain.Chart, *domain.Chart](func(c *domain.Chart, id int64) { c.ID = id }),
		ResourceOptions[domain.Chart]{Guard: ChartGuard(sources)}, nil)

	ds := &domain.DataSource{Name: "sales", Type: domain.SourceCSV, Status: domain.StatusReady, UserID: 1}
	require.NoError(t, sources.Create(context.Background(), ds))

	_, err := svc.Create(asUser(2), []byte(`{"name":"rev","type":"bar","config":{},"dataSourceId":`+jsonInt(ds.ID)+`}`))
	requireValidation(t, err, "dataSourceId", schema.ReasonConstraint)

	c, err := svc.Create(asUser(1), []byte(`{"name":"rev","type":"bar","config":{"x":"month"},"dataSourceId":`+jsonInt(ds.ID)+`}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":"month"}`, string(c.Config))

	_, err = svc.Create(asUser(1), []byte(`{"name":"rev","type":"bar","dataSourceId":`+jsonInt(ds.ID)+`}`))
	requireValidation(t, err, "config", schema.ReasonMissing)
}

func TestConversationMessagesAppendOnly(t *testing.T) {
	svc := NewResourceService[domain.AIConversation, *domain.AIConversation](domain.AIConversationEntity, newConversationRepo(),
		ResourceOptions[domain.AIConversation]{Guard: ConversationGuard}, nil)
	ctx := asUser(1)

	conv, err := svc.Create(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, conv.Messages)
	assert.Empty(t, conv.Messages)

	first := domain.Message{Role: "user", Content: "hi", Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	one, _ := json.Marshal(map[string]any{"messages": []domain.Message{first}})
	_, err = svc.Patch(ctx, conv.ID, one)
	require.NoError(t, err)

	rewritten, _ := json.Marshal(map[string]any{"messages": []domain.Message{{Role: "user", Content: "bye", Timestamp: first.Timestamp}}})
	_, err = svc.Patch(ctx, conv.ID, rewritten)
	requireValidation(t, err, "messages", schema.ReasonConstraint)

	_, err = svc.Patch(ctx, conv.ID, []byte(`{"messages":[]}`))
	requireValidation(t, err, "messages", schema.ReasonConstraint)
}

func TestOnChangeRunsAfterWrites(t *testing.T) {
	var changed []int64
	svc := NewResourceService[domain.Company, *domain.Company](domain.CompanyEntity, newCompanyRepo(),
		ResourceOptions[domain.Company]{OnChange: func(_ context.Context, userID int64) { changed = append(changed, userID) }}, nil)
	ctx := asUser(3)

	c, err := svc.Create(ctx, []byte(`{"name":"Acme","foundedDate":"2015-03-09","revenue":"100.50"}`))
	require.NoError(t, err)
	assert.Equal(t, "2015-03-09", c.FoundedDate.String())

	_, err = svc.Create(ctx, []byte(`{"name":"Bad","foundedDate":"03/09/2015"}`))
	requireValidation(t, err, "foundedDate", schema.ReasonWrongType)

	_, err = svc.Patch(ctx, c.ID, []byte(`{"stage":"growth"}`))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, c.ID))

	assert.Equal(t, []int64{3, 3, 3}, changed)
}

func jsonInt(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
