package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/keyline/license-backoffice/internal/domain/signingkey"
	"go.uber.org/zap"
)

type SigningKeyRepository struct {
	db     querier
	logger *zap.Logger
}

func NewSigningKeyRepository(db querier, logger *zap.Logger) *SigningKeyRepository {
	return &SigningKeyRepository{
		db:     db,
		logger: logger.Named("SigningKeyRepository"),
	}
}

var _ signingkey.Repository = (*SigningKeyRepository)(nil)

func (r *SigningKeyRepository) Create(ctx context.Context, k *signingkey.SigningKey) (uuid.UUID, error) {
	query := `
        INSERT INTO signing_keys (
            product_id, version, public_key_pem, private_key_pem, is_encrypted, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	var insertedID uuid.UUID
	err := r.db.QueryRow(ctx, query,
		k.ProductID,
		k.Version,
		k.PublicKeyPEM,
		k.PrivateKeyPEM,
		k.IsEncrypted,
		k.IsActive,
	).Scan(&insertedID)
	if err != nil {
		r.logger.Error("Failed to create signing key in database",
			zap.String("product_id", k.ProductID.String()), zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create signing key: %w", err)
	}
	return insertedID, nil
}

func (r *SigningKeyRepository) FindActiveByProduct(ctx context.Context, productID uuid.UUID) (*signingkey.SigningKey, error) {
	query := `
        SELECT id, product_id, version, public_key_pem, private_key_pem, is_encrypted, is_active, created_at
        FROM signing_keys
        WHERE product_id = $1 AND is_active = TRUE
        ORDER BY version DESC
        LIMIT 1
    `
	return r.scanSigningKey(r.db.QueryRow(ctx, query, productID))
}

func (r *SigningKeyRepository) DeactivateForProduct(ctx context.Context, productID uuid.UUID) error {
	query := `UPDATE signing_keys SET is_active = FALSE WHERE product_id = $1 AND is_active = TRUE`
	if _, err := r.db.Exec(ctx, query, productID); err != nil {
		r.logger.Error("Failed to deactivate signing keys",
			zap.String("product_id", productID.String()), zap.Error(err))
		return fmt.Errorf("database error on deactivate signing keys: %w", err)
	}
	return nil
}

func (r *SigningKeyRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*signingkey.SigningKey, error) {
	query := `
        SELECT id, product_id, version, public_key_pem, private_key_pem, is_encrypted, is_active, created_at
        FROM signing_keys WHERE product_id = $1 ORDER BY version DESC
    `
	rows, err := r.db.Query(ctx, query, productID)
	if err != nil {
		r.logger.Error("Failed to query signing keys", zap.Error(err))
		return nil, fmt.Errorf("database error on list signing keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*signingkey.SigningKey, 0)
	for rows.Next() {
		k, err := r.scanSigningKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list signing keys: %w", err)
	}
	return keys, nil
}

func (r *SigningKeyRepository) scanSigningKey(row pgx.Row) (*signingkey.SigningKey, error) {
	var k signingkey.SigningKey
	err := row.Scan(
		&k.ID,
		&k.ProductID,
		&k.Version,
		&k.PublicKeyPEM,
		&k.PrivateKeyPEM,
		&k.IsEncrypted,
		&k.IsActive,
		&k.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, signingkey.ErrNotFound
		}
		r.logger.Error("Failed to scan signing key row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &k, nil
}
