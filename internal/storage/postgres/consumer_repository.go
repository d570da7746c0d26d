package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/keyline/license-backoffice/internal/domain/consumer"
	"go.uber.org/zap"
)

type ConsumerRepository struct {
	db     querier
	logger *zap.Logger
}

func NewConsumerRepository(db querier, logger *zap.Logger) *ConsumerRepository {
	return &ConsumerRepository{
		db:     db,
		logger: logger.Named("ConsumerRepository"),
	}
}

var _ consumer.Repository = (*ConsumerRepository)(nil)

func (r *ConsumerRepository) Create(ctx context.Context, c *consumer.Consumer) (uuid.UUID, error) {
	query := `
        INSERT INTO consumers (name, email, organization)
        VALUES ($1, $2, $3)
        RETURNING id
    `
	var insertedID uuid.UUID
	err := r.db.QueryRow(ctx, query, c.Name, c.Email, c.Organization).Scan(&insertedID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Warn("Attempted to create consumer with duplicate email", zap.String("email", c.Email))
			return uuid.Nil, fmt.Errorf("consumer email '%s' already exists", c.Email)
		}
		r.logger.Error("Failed to create consumer in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create consumer: %w", err)
	}
	return insertedID, nil
}

func (r *ConsumerRepository) FindByID(ctx context.Context, id uuid.UUID) (*consumer.Consumer, error) {
	query := `
        SELECT id, name, email, organization, created_at, updated_at
        FROM consumers WHERE id = $1
    `
	return r.scanConsumer(r.db.QueryRow(ctx, query, id))
}

func (r *ConsumerRepository) FindByEmail(ctx context.Context, email string) (*consumer.Consumer, error) {
	query := `
        SELECT id, name, email, organization, created_at, updated_at
        FROM consumers WHERE email = $1
    `
	return r.scanConsumer(r.db.QueryRow(ctx, query, email))
}

func (r *ConsumerRepository) List(ctx context.Context) ([]*consumer.Consumer, error) {
	query := `
        SELECT id, name, email, organization, created_at, updated_at
        FROM consumers ORDER BY name
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query consumers", zap.Error(err))
		return nil, fmt.Errorf("database error on list consumers: %w", err)
	}
	defer rows.Close()

	consumers := make([]*consumer.Consumer, 0)
	for rows.Next() {
		c, err := r.scanConsumer(rows)
		if err != nil {
			return nil, err
		}
		consumers = append(consumers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list consumers: %w", err)
	}
	return consumers, nil
}

func (r *ConsumerRepository) Update(ctx context.Context, c *consumer.Consumer) error {
	query := `
        UPDATE consumers SET name = $1, email = $2, organization = $3, updated_at = NOW()
        WHERE id = $4
    `
	cmdTag, err := r.db.Exec(ctx, query, c.Name, c.Email, c.Organization, c.ID)
	if err != nil {
		r.logger.Error("Failed to update consumer", zap.String("id", c.ID.String()), zap.Error(err))
		return fmt.Errorf("database error on update consumer: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return consumer.ErrNotFound
	}
	return nil
}

func (r *ConsumerRepository) scanConsumer(row pgx.Row) (*consumer.Consumer, error) {
	var c consumer.Consumer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Organization, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, consumer.ErrNotFound
		}
		r.logger.Error("Failed to scan consumer row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &c, nil
}
