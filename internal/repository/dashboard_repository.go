package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// PostgresDashboardRepository stores dashboard layouts
type PostgresDashboardRepository struct {
	t *ownedTable[domain.Dashboard]
}

func NewPostgresDashboardRepository(db *sql.DB, logger *slog.Logger) *PostgresDashboardRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDashboardRepository{t: &ownedTable[domain.Dashboard]{
		db:      db,
		logger:  logger,
		table:   "dashboards",
		columns: `id, name, layout, user_id, created_at`,
		scan: func(s scanner) (*domain.Dashboard, error) {
			d := &domain.Dashboard{}
			var layout []byte
			if err := s.Scan(&d.ID, &d.Name, &layout, &d.UserID, &d.CreatedAt); err != nil {
				return nil, err
			}
			d.Layout = layout
			return d, nil
		},
	}}
}

func (r *PostgresDashboardRepository) Create(ctx context.Context, d *domain.Dashboard) error {
	query := `INSERT INTO dashboards (name, layout, user_id) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.t.queryRow(ctx, "create", query, []any{d.Name, document(d.Layout), d.UserID}, &d.ID, &d.CreatedAt)
}

func (r *PostgresDashboardRepository) Get(ctx context.Context, userID, id int64) (*domain.Dashboard, error) {
	return r.t.get(ctx, userID, id)
}

func (r *PostgresDashboardRepository) List(ctx context.Context, userID int64) ([]*domain.Dashboard, error) {
	return r.t.list(ctx, userID)
}

func (r *PostgresDashboardRepository) Update(ctx context.Context, d *domain.Dashboard) error {
	query := `UPDATE dashboards SET name = $1, layout = $2 WHERE id = $3 AND user_id = $4 RETURNING created_at`
	return r.t.queryRow(ctx, "update", query, []any{d.Name, document(d.Layout), d.ID, d.UserID}, &d.CreatedAt)
}

func (r *PostgresDashboardRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.t.delete(ctx, userID, id)
}
