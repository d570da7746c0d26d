package signingkey

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("signing key not found")

// SigningKey is one generation of a product's RSA key pair. Exactly one
// generation is active per product; rotation deactivates the prior one.
type SigningKey struct {
	ID            uuid.UUID `db:"id"`
	ProductID     uuid.UUID `db:"product_id"`
	Version       int32     `db:"version"`
	PublicKeyPEM  string    `db:"public_key_pem"`
	PrivateKeyPEM string    `db:"private_key_pem"`
	IsEncrypted   bool      `db:"is_encrypted"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
}
