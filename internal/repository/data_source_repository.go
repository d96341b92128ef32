package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// PostgresDataSourceRepository stores data source metadata
type PostgresDataSourceRepository struct {
	t *ownedTable[domain.DataSource]
}

func NewPostgresDataSourceRepository(db *sql.DB, logger *slog.Logger) *PostgresDataSourceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDataSourceRepository{t: &ownedTable[domain.DataSource]{
		db:      db,
		logger:  logger,
		table:   "data_sources",
		columns: `id, name, type, file_name, file_path, schema, row_count, status, user_id, created_at`,
		scan:    scanDataSource,
	}}
}

func scanDataSource(s scanner) (*domain.DataSource, error) {
	d := &domain.DataSource{}
	var fileName, filePath sql.NullString
	var schemaDoc []byte
	if err := s.Scan(&d.ID, &d.Name, &d.Type, &fileName, &filePath, &schemaDoc, &d.RowCount, &d.Status, &d.UserID, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.FileName = stringPtr(fileName)
	d.FilePath = stringPtr(filePath)
	d.Schema = schemaDoc
	return d, nil
}

func (r *PostgresDataSourceRepository) Create(ctx context.Context, d *domain.DataSource) error {
	query := `
		INSERT INTO data_sources (name, type, file_name, file_path, schema, row_count, status, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	args := []any{d.Name, d.Type, nullString(d.FileName), nullString(d.FilePath), document(d.Schema), d.RowCount, d.Status, d.UserID}
	return r.t.queryRow(ctx, "create", query, args, &d.ID, &d.CreatedAt)
}

func (r *PostgresDataSourceRepository) Get(ctx context.Context, userID, id int64) (*domain.DataSource, error) {
	return r.t.get(ctx, userID, id)
}

func (r *PostgresDataSourceRepository) List(ctx context.Context, userID int64) ([]*domain.DataSource, error) {
	return r.t.list(ctx, userID)
}

func (r *PostgresDataSourceRepository) Update(ctx context.Context, d *domain.DataSource) error {
	query := `
		UPDATE data_sources
		SET name = $1, type = $2, file_name = $3, file_path = $4, schema = $5, row_count = $6, status = $7
		WHERE id = $8 AND user_id = $9
		RETURNING created_at
	`
	args := []any{d.Name, d.Type, nullString(d.FileName), nullString(d.FilePath), document(d.Schema), d.RowCount, d.Status, d.ID, d.UserID}
	return r.t.queryRow(ctx, "update", query, args, &d.CreatedAt)
}

// ListByStatus returns the data sources of every owner in the given status
func (r *PostgresDataSourceRepository) ListByStatus(ctx context.Context, status string) ([]*domain.DataSource, error) {
	return r.t.selectWhere(ctx, `status = $1`, status)
}

func (r *PostgresDataSourceRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.t.delete(ctx, userID, id)
}
