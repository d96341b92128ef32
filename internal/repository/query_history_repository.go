package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// PostgresQueryHistoryRepository stores executed warehouse queries
type PostgresQueryHistoryRepository struct {
	t *ownedTable[domain.QueryHistory]
}

func NewPostgresQueryHistoryRepository(db *sql.DB, logger *slog.Logger) *PostgresQueryHistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQueryHistoryRepository{t: &ownedTable[domain.QueryHistory]{
		db:      db,
		logger:  logger,
		table:   "query_history",
		columns: `id, query, status, duration, rows_returned, credits_used, warehouse_id, user_id, created_at`,
		scan:    scanQueryHistory,
	}}
}

func scanQueryHistory(s scanner) (*domain.QueryHistory, error) {
	q := &domain.QueryHistory{}
	var duration, rowsReturned sql.NullInt64
	if err := s.Scan(&q.ID, &q.Query, &q.Status, &duration, &rowsReturned, &q.CreditsUsed, &q.WarehouseID, &q.UserID, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.Duration = intPtr(duration)
	q.RowsReturned = intPtr(rowsReturned)
	return q, nil
}

func (r *PostgresQueryHistoryRepository) Create(ctx context.Context, q *domain.QueryHistory) error {
	query := `
		INSERT INTO query_history (query, status, duration, rows_returned, credits_used, warehouse_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	args := []any{q.Query, q.Status, nullInt(q.Duration), nullInt(q.RowsReturned), q.CreditsUsed, q.WarehouseID, q.UserID}
	return r.t.queryRow(ctx, "create", query, args, &q.ID, &q.CreatedAt)
}

func (r *PostgresQueryHistoryRepository) Get(ctx context.Context, userID, id int64) (*domain.QueryHistory, error) {
	return r.t.get(ctx, userID, id)
}

func (r *PostgresQueryHistoryRepository) List(ctx context.Context, userID int64) ([]*domain.QueryHistory, error) {
	return r.t.list(ctx, userID)
}

func (r *PostgresQueryHistoryRepository) Update(ctx context.Context, q *domain.QueryHistory) error {
	query := `
		UPDATE query_history
		SET query = $1, status = $2, duration = $3, rows_returned = $4, credits_used = $5, warehouse_id = $6
		WHERE id = $7 AND user_id = $8
		RETURNING created_at
	`
	args := []any{q.Query, q.Status, nullInt(q.Duration), nullInt(q.RowsReturned), q.CreditsUsed, q.WarehouseID, q.ID, q.UserID}
	return r.t.queryRow(ctx, "update", query, args, &q.CreatedAt)
}

func (r *PostgresQueryHistoryRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.t.delete(ctx, userID, id)
}
