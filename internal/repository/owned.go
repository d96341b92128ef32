package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
)

// ownedTable implements the owner-scoped reads and deletes shared by every resource table
type ownedTable[T any] struct {
	db      *sql.DB
	logger  *slog.Logger
	table   string
	columns string
	scan    func(scanner) (*T, error)
}

func (t *ownedTable[T]) get(ctx context.Context, userID, id int64) (*T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND user_id = $2`, t.columns, t.table)

	item, err := t.scan(t.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, wrap("get "+t.table, err)
	}
	return item, nil
}

func (t *ownedTable[T]) list(ctx context.Context, userID int64) ([]*T, error) {
	return t.selectWhere(ctx, `user_id = $1`, userID)
}

// selectWhere returns every row matching the condition, newest first
func (t *ownedTable[T]) selectWhere(ctx context.Context, where string, args ...any) ([]*T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC, id DESC`, t.columns, t.table, where)

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		t.logger.Error("failed to list rows",
			slog.String("table", t.table),
			slog.String("where", where),
			slog.String("error", err.Error()),
		)
		return nil, wrap("list "+t.table, err)
	}
	defer rows.Close()

	items := []*T{}
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			t.logger.Error("failed to scan row",
				slog.String("table", t.table),
				slog.String("error", err.Error()),
			)
			return nil, wrap("scan "+t.table, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (t *ownedTable[T]) delete(ctx context.Context, userID, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, t.table)

	result, err := t.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return wrap("delete "+t.table, err)
	}
	return expectRow(result, t.table)
}

// queryRow runs an INSERT or UPDATE ... RETURNING and scans the returned columns
func (t *ownedTable[T]) queryRow(ctx context.Context, op, query string, args []any, dest ...any) error {
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			t.logger.Error("failed to "+op,
				slog.String("table", t.table),
				slog.String("error", err.Error()),
			)
		}
		return wrap(op+" "+t.table, err)
	}
	return nil
}

// queryItem runs an UPDATE ... RETURNING <columns> and scans the full row
func (t *ownedTable[T]) queryItem(ctx context.Context, op, query string, args ...any) (*T, error) {
	item, err := t.scan(t.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			t.logger.Error("failed to "+op,
				slog.String("table", t.table),
				slog.String("error", err.Error()),
			)
		}
		return nil, wrap(op+" "+t.table, err)
	}
	return item, nil
}

func expectRow(result sql.Result, table string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", table, apperrors.ErrNotFound)
	}
	return nil
}
