package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"go.uber.org/zap"
)

type AuditRepository struct {
	db     querier
	logger *zap.Logger
}

func NewAuditRepository(db querier, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger.Named("AuditRepository"),
	}
}

var _ audit.Repository = (*AuditRepository)(nil)

func (r *AuditRepository) Create(ctx context.Context, e *audit.Entry) (uuid.UUID, error) {
	query := `
        INSERT INTO audit_entries (
            entity_type, entity_id, action, actor, reason, before_state, after_state
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	var insertedID uuid.UUID
	err := r.db.QueryRow(ctx, query,
		e.EntityType,
		e.EntityID,
		e.Action,
		e.Actor,
		e.Reason,
		e.Before,
		e.After,
	).Scan(&insertedID)
	if err != nil {
		r.logger.Error("Failed to create audit entry in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create audit entry: %w", err)
	}
	return insertedID, nil
}

func (r *AuditRepository) List(ctx context.Context, params audit.ListParams) ([]*audit.Entry, int64, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if params.EntityType != nil {
		args = append(args, *params.EntityType)
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if params.EntityID != nil {
		args = append(args, *params.EntityID)
		where = append(where, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if params.Action != nil {
		args = append(args, *params.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_entries`+whereClause, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count audit entries", zap.Error(err))
		return nil, 0, fmt.Errorf("database error counting audit entries: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
        SELECT id, entity_type, entity_id, action, actor, reason, before_state, after_state, created_at
        FROM audit_entries%s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d`, whereClause, len(args)+1, len(args)+2)
	args = append(args, limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query audit entries", zap.Error(err))
		return nil, 0, fmt.Errorf("database error on list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*audit.Entry, 0)
	for rows.Next() {
		var e audit.Entry
		err := rows.Scan(
			&e.ID,
			&e.EntityType,
			&e.EntityID,
			&e.Action,
			&e.Actor,
			&e.Reason,
			&e.Before,
			&e.After,
			&e.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan audit entry row", zap.Error(err))
			return nil, 0, fmt.Errorf("database scan error on audit entries: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database iteration error on audit entries: %w", err)
	}

	return entries, total, nil
}
