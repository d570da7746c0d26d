package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"go.uber.org/zap"
)

const licenseColumns = `
            id, code, product_id, consumer_id, tier, license_key, model,
            status, valid_from, valid_to, max_allowed_users, max_activations,
            metadata, events, signature, public_key, revoked_at,
            revocation_reason, created_at, updated_at`

type LicenseRepository struct {
	db     querier
	logger *zap.Logger
}

func NewLicenseRepository(db querier, logger *zap.Logger) *LicenseRepository {
	return &LicenseRepository{
		db:     db,
		logger: logger.Named("LicenseRepository"),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	query := `
        INSERT INTO licenses (
            code, product_id, consumer_id, tier, license_key, model, status,
            valid_from, valid_to, max_allowed_users, max_activations,
            metadata, events, signature, public_key
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
        ) RETURNING id
    `

	metaJSON, eventsJSON, err := marshalLicenseBags(lic)
	if err != nil {
		return uuid.Nil, err
	}

	var insertedID uuid.UUID
	err = r.db.QueryRow(ctx, query,
		lic.Code,
		lic.ProductID,
		lic.ConsumerID,
		lic.Tier,
		lic.LicenseKey,
		lic.Model,
		lic.Status,
		lic.ValidFrom,
		lic.ValidTo,
		lic.MaxAllowedUsers,
		lic.MaxActivations,
		metaJSON,
		eventsJSON,
		lic.Signature,
		lic.PublicKey,
	).Scan(&insertedID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Warn("Attempted to create license with duplicate key or code",
				zap.String("code", lic.Code),
				zap.String("constraint", pgErr.ConstraintName),
			)
			return uuid.Nil, fmt.Errorf("license key or code already exists (%s)", pgErr.ConstraintName)
		}
		r.logger.Error("Failed to create license in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create license: %w", err)
	}

	return insertedID, nil
}

func (r *LicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE id = $1`
	return r.scanLicense(r.db.QueryRow(ctx, query, id))
}

func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*license.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE license_key = $1`
	return r.scanLicense(r.db.QueryRow(ctx, query, key))
}

func (r *LicenseRepository) FindByCode(ctx context.Context, code string) (*license.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE code = $1`
	return r.scanLicense(r.db.QueryRow(ctx, query, code))
}

func (r *LicenseRepository) List(ctx context.Context, params license.ListParams) ([]*license.License, int64, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 4)

	addFilter := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if params.Status != nil {
		addFilter("status = $%d", *params.Status)
	}
	if params.Model != nil {
		addFilter("model = $%d", *params.Model)
	}
	if params.ProductID != nil {
		addFilter("product_id = $%d", *params.ProductID)
	}
	if params.ConsumerID != nil {
		addFilter("consumer_id = $%d", *params.ConsumerID)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM licenses` + whereClause
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count licenses", zap.Error(err))
		return nil, 0, fmt.Errorf("database error counting licenses: %w", err)
	}

	sortBy := sanitizeSortColumn(params.SortBy)
	sortOrder := "DESC"
	if strings.EqualFold(params.SortOrder, "ASC") {
		sortOrder = "ASC"
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT%s FROM licenses%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		licenseColumns, whereClause, sortBy, sortOrder, len(args)+1, len(args)+2)
	args = append(args, limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query list of licenses", zap.Error(err))
		return nil, 0, fmt.Errorf("database error on list licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]*license.License, 0)
	for rows.Next() {
		lic, err := r.scanLicense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database scan error during list: %w", err)
		}
		licenses = append(licenses, lic)
	}
	if err = rows.Err(); err != nil {
		r.logger.Error("Error iterating license rows", zap.Error(err))
		return nil, 0, fmt.Errorf("database iteration error on list licenses: %w", err)
	}

	return licenses, total, nil
}

func (r *LicenseRepository) Update(ctx context.Context, lic *license.License) error {
	query := `
        UPDATE licenses SET
            tier = $1,
            license_key = $2,
            status = $3,
            valid_from = $4,
            valid_to = $5,
            max_allowed_users = $6,
            max_activations = $7,
            metadata = $8,
            events = $9,
            signature = $10,
            public_key = $11,
            revoked_at = $12,
            revocation_reason = $13,
            updated_at = NOW()
        WHERE id = $14
    `

	metaJSON, eventsJSON, err := marshalLicenseBags(lic)
	if err != nil {
		return err
	}

	cmdTag, err := r.db.Exec(ctx, query,
		lic.Tier,
		lic.LicenseKey,
		lic.Status,
		lic.ValidFrom,
		lic.ValidTo,
		lic.MaxAllowedUsers,
		lic.MaxActivations,
		metaJSON,
		eventsJSON,
		lic.Signature,
		lic.PublicKey,
		lic.RevokedAt,
		lic.RevocationReason,
		lic.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update license in database", zap.String("id", lic.ID.String()), zap.Error(err))
		return fmt.Errorf("database error on update license: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.Warn("Attempted to update license, but no rows were affected", zap.String("id", lic.ID.String()))
		return fmt.Errorf("%w: id %s", license.ErrUpdateFailed, lic.ID)
	}

	return nil
}

func (r *LicenseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status license.Status) error {
	query := `UPDATE licenses SET status = $1, updated_at = NOW() WHERE id = $2`
	cmdTag, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update license status", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on update license status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}
	return nil
}

func (r *LicenseRepository) CountActiveForConsumerProduct(ctx context.Context, consumerID, productID uuid.UUID, excludeID uuid.UUID) (int64, error) {
	query := `
        SELECT COUNT(*) FROM licenses
        WHERE consumer_id = $1 AND product_id = $2 AND status = $3 AND id <> $4
    `
	var count int64
	err := r.db.QueryRow(ctx, query, consumerID, productID, license.StatusActive, excludeID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count active licenses for consumer/product", zap.Error(err))
		return 0, fmt.Errorf("database error counting active licenses: %w", err)
	}
	return count, nil
}

func (r *LicenseRepository) Summary(ctx context.Context) (*license.Summary, error) {
	summary := &license.Summary{
		StatusCounts:  make(map[license.Status]int64),
		ModelCounts:   make(map[license.Model]int64),
		ProductCounts: make(map[string]int64),
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM licenses`).Scan(&summary.Total); err != nil {
		return nil, fmt.Errorf("database error on license total: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM licenses GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("database error on status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st license.Status
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("database scan error on status counts: %w", err)
		}
		summary.StatusCounts[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on status counts: %w", err)
	}

	rows, err = r.db.Query(ctx, `SELECT model, COUNT(*) FROM licenses GROUP BY model`)
	if err != nil {
		return nil, fmt.Errorf("database error on model counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m license.Model
		var n int64
		if err := rows.Scan(&m, &n); err != nil {
			return nil, fmt.Errorf("database scan error on model counts: %w", err)
		}
		summary.ModelCounts[m] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on model counts: %w", err)
	}

	rows, err = r.db.Query(ctx, `
        SELECT p.name, COUNT(*) FROM licenses l
        JOIN products p ON p.id = l.product_id
        GROUP BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("database error on product counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("database scan error on product counts: %w", err)
		}
		summary.ProductCounts[name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on product counts: %w", err)
	}

	return summary, nil
}

func (r *LicenseRepository) scanLicense(row pgx.Row) (*license.License, error) {
	var lic license.License
	var metaJSON, eventsJSON []byte

	err := row.Scan(
		&lic.ID,
		&lic.Code,
		&lic.ProductID,
		&lic.ConsumerID,
		&lic.Tier,
		&lic.LicenseKey,
		&lic.Model,
		&lic.Status,
		&lic.ValidFrom,
		&lic.ValidTo,
		&lic.MaxAllowedUsers,
		&lic.MaxActivations,
		&metaJSON,
		&eventsJSON,
		&lic.Signature,
		&lic.PublicKey,
		&lic.RevokedAt,
		&lic.RevocationReason,
		&lic.CreatedAt,
		&lic.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrNotFound
		}
		r.logger.Error("Failed to scan license row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &lic.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode license metadata: %w", err)
		}
	}
	if len(eventsJSON) > 0 {
		if err := json.Unmarshal(eventsJSON, &lic.Events); err != nil {
			return nil, fmt.Errorf("failed to decode license events: %w", err)
		}
	}

	return &lic, nil
}

func marshalLicenseBags(lic *license.License) ([]byte, []byte, error) {
	meta := lic.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode license metadata: %w", err)
	}

	events := lic.Events
	if events == nil {
		events = []license.Event{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode license events: %w", err)
	}

	return metaJSON, eventsJSON, nil
}

func sanitizeSortColumn(col string) string {
	switch col {
	case "valid_to", "valid_from", "code", "status", "updated_at":
		return col
	default:
		return "created_at"
	}
}
