package store

import (
	"context"

	"github.com/keyline/license-backoffice/internal/domain/activation"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"github.com/keyline/license-backoffice/internal/domain/consumer"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/domain/product"
	"github.com/keyline/license-backoffice/internal/domain/signingkey"
)

// Store aggregates the repositories. WithinTx runs fn against a Store whose
// repositories share one database transaction; returning an error rolls the
// whole unit back.
type Store interface {
	Licenses() license.Repository
	Products() product.Repository
	Consumers() consumer.Repository
	Activations() activation.Repository
	SigningKeys() signingkey.Repository
	AuditEntries() audit.Repository

	WithinTx(ctx context.Context, fn func(s Store) error) error
}
