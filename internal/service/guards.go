package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/schema"
)

func fieldError(entity *schema.Entity, field string, reason schema.Reason, msg string) error {
	return &schema.ValidationError{
		Entity: entity.Name(),
		Fields: []schema.FieldError{{Field: field, Reason: reason, Message: msg}},
	}
}

// ownedReference checks that id names a row of repo owned by userID
func ownedReference[T any](ctx context.Context, repo domain.OwnedRepository[T], entity *schema.Entity, field string, userID, id int64) error {
	if _, err := repo.Get(ctx, userID, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fieldError(entity, field, schema.ReasonConstraint, "references an unknown row")
		}
		return err
	}
	return nil
}

// DataSourceGuard allows a data source to leave processing once, for ready or error
func DataSourceGuard(_ context.Context, _ int64, prev, next *domain.DataSource) error {
	if prev == nil || prev.Status == next.Status {
		return nil
	}
	if prev.Status == domain.StatusProcessing && (next.Status == domain.StatusReady || next.Status == domain.StatusError) {
		return nil
	}
	return fmt.Errorf("data source status %s -> %s: %w", prev.Status, next.Status, apperrors.ErrInvalidTransition)
}

// QueryHistoryGuard ties a query to one of the caller's warehouses and only lets
// a running query finish once. Duration and row counts exist only for finished queries.
func QueryHistoryGuard(warehouses domain.OwnedRepository[domain.Warehouse]) Guard[domain.QueryHistory] {
	return func(ctx context.Context, userID int64, prev, next *domain.QueryHistory) error {
		if prev != nil && prev.Status != next.Status && prev.Status != domain.QueryRunning {
			return fmt.Errorf("query status %s -> %s: %w", prev.Status, next.Status, apperrors.ErrInvalidTransition)
		}
		if !next.Terminal() {
			if next.Duration != nil {
				return fieldError(domain.QueryHistoryEntity, "duration", schema.ReasonConstraint, "is only recorded for finished queries")
			}
			if next.RowsReturned != nil {
				return fieldError(domain.QueryHistoryEntity, "rowsReturned", schema.ReasonConstraint, "is only recorded for finished queries")
			}
		}
		if prev != nil && prev.WarehouseID == next.WarehouseID {
			return nil
		}
		return ownedReference(ctx, warehouses, domain.QueryHistoryEntity, "warehouseId", userID, next.WarehouseID)
	}
}

// ChartGuard requires the chart's data source to belong to the caller
func ChartGuard(sources domain.OwnedRepository[domain.DataSource]) Guard[domain.Chart] {
	return func(ctx context.Context, userID int64, prev, next *domain.Chart) error {
		if prev != nil && prev.DataSourceID == next.DataSourceID {
			return nil
		}
		return ownedReference(ctx, sources, domain.ChartEntity, "dataSourceId", userID, next.DataSourceID)
	}
}

// ConversationGuard keeps message history append-only
func ConversationGuard(_ context.Context, _ int64, prev, next *domain.AIConversation) error {
	if prev == nil {
		return nil
	}
	if len(next.Messages) < len(prev.Messages) ||
		!slices.EqualFunc(prev.Messages, next.Messages[:len(prev.Messages)], sameMessage) {
		return fieldError(domain.AIConversationEntity, "messages", schema.ReasonConstraint, "may only be appended to")
	}
	return nil
}

func sameMessage(a, b domain.Message) bool {
	return a.Role == b.Role && a.Content == b.Content && a.Timestamp.Equal(b.Timestamp)
}
