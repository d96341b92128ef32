package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// PostgresWarehouseRepository stores warehouses
type PostgresWarehouseRepository struct {
	t *ownedTable[domain.Warehouse]
}

func NewPostgresWarehouseRepository(db *sql.DB, logger *slog.Logger) *PostgresWarehouseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresWarehouseRepository{t: &ownedTable[domain.Warehouse]{
		db:      db,
		logger:  logger,
		table:   "warehouses",
		columns: `id, name, size, status, credits_per_hour, nodes, auto_suspend, user_id, created_at`,
		scan:    scanWarehouse,
	}}
}

func scanWarehouse(s scanner) (*domain.Warehouse, error) {
	w := &domain.Warehouse{}
	var userID sql.NullInt64
	if err := s.Scan(&w.ID, &w.Name, &w.Size, &w.Status, &w.CreditsPerHour, &w.Nodes, &w.AutoSuspend, &userID, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.UserID = intPtr(userID)
	return w, nil
}

func (r *PostgresWarehouseRepository) Create(ctx context.Context, w *domain.Warehouse) error {
	query := `
		INSERT INTO warehouses (name, size, status, credits_per_hour, nodes, auto_suspend, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	args := []any{w.Name, w.Size, w.Status, w.CreditsPerHour, w.Nodes, w.AutoSuspend, nullInt(w.UserID)}
	return r.t.queryRow(ctx, "create", query, args, &w.ID, &w.CreatedAt)
}

func (r *PostgresWarehouseRepository) Get(ctx context.Context, userID, id int64) (*domain.Warehouse, error) {
	return r.t.get(ctx, userID, id)
}

func (r *PostgresWarehouseRepository) List(ctx context.Context, userID int64) ([]*domain.Warehouse, error) {
	return r.t.list(ctx, userID)
}

func (r *PostgresWarehouseRepository) Update(ctx context.Context, w *domain.Warehouse) error {
	query := `
		UPDATE warehouses
		SET name = $1, size = $2, status = $3, credits_per_hour = $4, nodes = $5, auto_suspend = $6
		WHERE id = $7 AND user_id = $8
		RETURNING created_at
	`
	args := []any{w.Name, w.Size, w.Status, w.CreditsPerHour, w.Nodes, w.AutoSuspend, w.ID, w.OwnerID()}
	return r.t.queryRow(ctx, "update", query, args, &w.CreatedAt)
}

func (r *PostgresWarehouseRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.t.delete(ctx, userID, id)
}
