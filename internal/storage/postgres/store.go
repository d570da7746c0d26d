package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keyline/license-backoffice/internal/domain/activation"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"github.com/keyline/license-backoffice/internal/domain/consumer"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/product"
	"github.com/keyline/license-backoffice/internal/domain/signingkey"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"go.uber.org/zap"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// works identically inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool   *pgxpool.Pool
	db     querier
	logger *zap.Logger

	licenses    *LicenseRepository
	products    *ProductRepository
	consumers   *ConsumerRepository
	activations *ActivationRepository
	signingKeys *SigningKeyRepository
	audits      *AuditRepository
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return newStore(pool, pool, logger)
}

func newStore(pool *pgxpool.Pool, db querier, logger *zap.Logger) *Store {
	return &Store{
		pool:        pool,
		db:          db,
		logger:      logger,
		licenses:    NewLicenseRepository(db, logger),
		products:    NewProductRepository(db, logger),
		consumers:   NewConsumerRepository(db, logger),
		activations: NewActivationRepository(db, logger),
		signingKeys: NewSigningKeyRepository(db, logger),
		audits:      NewAuditRepository(db, logger),
	}
}

func (s *Store) Licenses() license.Repository       { return s.licenses }
func (s *Store) Products() product.Repository       { return s.products }
func (s *Store) Consumers() consumer.Repository     { return s.consumers }
func (s *Store) Activations() activation.Repository { return s.activations }
func (s *Store) SigningKeys() signingkey.Repository { return s.signingKeys }
func (s *Store) AuditEntries() audit.Repository     { return s.audits }

func (s *Store) WithinTx(ctx context.Context, fn func(s store.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// The deferred rollback releases the connection even when fn panics
	// or returns early; after a commit it is a no-op.
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("Transaction rollback failed", zap.Error(rbErr))
		}
	}()

	txStore := newStore(s.pool, tx, s.logger)

	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
