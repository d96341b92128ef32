package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// PostgresChartRepository stores chart configurations
type PostgresChartRepository struct {
	t *ownedTable[domain.Chart]
}

func NewPostgresChartRepository(db *sql.DB, logger *slog.Logger) *PostgresChartRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresChartRepository{t: &ownedTable[domain.Chart]{
		db:      db,
		logger:  logger,
		table:   "charts",
		columns: `id, name, type, config, data_source_id, user_id, created_at`,
		scan:    scanChart,
	}}
}

func scanChart(s scanner) (*domain.Chart, error) {
	c := &domain.Chart{}
	var config []byte
	if err := s.Scan(&c.ID, &c.Name, &c.Type, &config, &c.DataSourceID, &c.UserID, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Config = config
	return c, nil
}

func (r *PostgresChartRepository) Create(ctx context.Context, c *domain.Chart) error {
	query := `
		INSERT INTO charts (name, type, config, data_source_id, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	args := []any{c.Name, c.Type, string(c.Config), c.DataSourceID, c.UserID}
	return r.t.queryRow(ctx, "create", query, args, &c.ID, &c.CreatedAt)
}

func (r *PostgresChartRepository) Get(ctx context.Context, userID, id int64) (*domain.Chart, error) {
	return r.t.get(ctx, userID, id)
}

func (r *PostgresChartRepository) List(ctx context.Context, userID int64) ([]*domain.Chart, error) {
	return r.t.list(ctx, userID)
}

func (r *PostgresChartRepository) Update(ctx context.Context, c *domain.Chart) error {
	query := `
		UPDATE charts
		SET name = $1, type = $2, config = $3, data_source_id = $4
		WHERE id = $5 AND user_id = $6
		RETURNING created_at
	`
	args := []any{c.Name, c.Type, string(c.Config), c.DataSourceID, c.ID, c.UserID}
	return r.t.queryRow(ctx, "update", query, args, &c.CreatedAt)
}

func (r *PostgresChartRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.t.delete(ctx, userID, id)
}
