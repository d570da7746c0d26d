package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/keyline/license-backoffice/internal/domain/activation"
	"go.uber.org/zap"
)

const activationColumns = `
            id, license_id, product_key, machine_id, machine_fingerprint,
            machine_name, status, signature, activated_at, deactivated_at`

type ActivationRepository struct {
	db     querier
	logger *zap.Logger
}

func NewActivationRepository(db querier, logger *zap.Logger) *ActivationRepository {
	return &ActivationRepository{
		db:     db,
		logger: logger.Named("ActivationRepository"),
	}
}

var _ activation.Repository = (*ActivationRepository)(nil)

func (r *ActivationRepository) Create(ctx context.Context, a *activation.Activation) (uuid.UUID, error) {
	query := `
        INSERT INTO activations (
            license_id, product_key, machine_id, machine_fingerprint,
            machine_name, status, signature, activated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	var insertedID uuid.UUID
	err := r.db.QueryRow(ctx, query,
		a.LicenseID,
		a.ProductKey,
		a.MachineID,
		a.MachineFingerprint,
		a.MachineName,
		a.Status,
		a.Signature,
		a.ActivatedAt,
	).Scan(&insertedID)
	if err != nil {
		r.logger.Error("Failed to create activation in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create activation: %w", err)
	}
	return insertedID, nil
}

func (r *ActivationRepository) FindBySignature(ctx context.Context, signature string) (*activation.Activation, error) {
	query := `SELECT` + activationColumns + ` FROM activations WHERE signature = $1`
	return r.scanActivation(r.db.QueryRow(ctx, query, signature))
}

func (r *ActivationRepository) FindActiveByLicenseAndMachine(ctx context.Context, licenseID uuid.UUID, machineID string) (*activation.Activation, error) {
	query := `SELECT` + activationColumns + `
        FROM activations
        WHERE license_id = $1 AND machine_id = $2 AND status = $3
        ORDER BY activated_at DESC
        LIMIT 1`
	return r.scanActivation(r.db.QueryRow(ctx, query, licenseID, machineID, activation.StatusActive))
}

func (r *ActivationRepository) ListByProductKey(ctx context.Context, productKey string) ([]*activation.Activation, error) {
	query := `SELECT` + activationColumns + ` FROM activations WHERE product_key = $1 ORDER BY activated_at DESC`
	rows, err := r.db.Query(ctx, query, productKey)
	if err != nil {
		r.logger.Error("Failed to query activations by product key", zap.Error(err))
		return nil, fmt.Errorf("database error on list activations: %w", err)
	}
	defer rows.Close()

	activations := make([]*activation.Activation, 0)
	for rows.Next() {
		a, err := r.scanActivation(rows)
		if err != nil {
			return nil, err
		}
		activations = append(activations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list activations: %w", err)
	}
	return activations, nil
}

func (r *ActivationRepository) CountActiveByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM activations WHERE license_id = $1 AND status = $2`
	var count int64
	if err := r.db.QueryRow(ctx, query, licenseID, activation.StatusActive).Scan(&count); err != nil {
		r.logger.Error("Failed to count active activations", zap.String("license_id", licenseID.String()), zap.Error(err))
		return 0, fmt.Errorf("database error counting activations: %w", err)
	}
	return count, nil
}

func (r *ActivationRepository) Update(ctx context.Context, a *activation.Activation) error {
	query := `
        UPDATE activations SET status = $1, deactivated_at = $2
        WHERE id = $3
    `
	cmdTag, err := r.db.Exec(ctx, query, a.Status, a.DeactivatedAt, a.ID)
	if err != nil {
		r.logger.Error("Failed to update activation", zap.String("id", a.ID.String()), zap.Error(err))
		return fmt.Errorf("database error on update activation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return activation.ErrNotFound
	}
	return nil
}

func (r *ActivationRepository) scanActivation(row pgx.Row) (*activation.Activation, error) {
	var a activation.Activation
	err := row.Scan(
		&a.ID,
		&a.LicenseID,
		&a.ProductKey,
		&a.MachineID,
		&a.MachineFingerprint,
		&a.MachineName,
		&a.Status,
		&a.Signature,
		&a.ActivatedAt,
		&a.DeactivatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activation.ErrNotFound
		}
		r.logger.Error("Failed to scan activation row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &a, nil
}
