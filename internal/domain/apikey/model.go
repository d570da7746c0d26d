package apikey

import (
	"time"

	"github.com/google/uuid"
)

// Scope limits what the public surface lets an agent key do. Activation
// implies validation since an activating agent always validates first.
type Scope string

const (
	ScopeValidate Scope = "validate"
	ScopeActivate Scope = "activate"
	ScopeFull     Scope = "full"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeValidate, ScopeActivate, ScopeFull:
		return true
	}
	return false
}

// Allows reports whether a key holding scope s may perform an operation
// requiring the given scope.
func (s Scope) Allows(required Scope) bool {
	switch s {
	case ScopeFull:
		return true
	case ScopeActivate:
		return required == ScopeActivate || required == ScopeValidate
	case ScopeValidate:
		return required == ScopeValidate
	}
	return false
}

// APIKey is a service-to-service credential for product agents. Only the
// SHA-256 hash of the full key is stored; the prefix is the lookup handle.
type APIKey struct {
	ID          uuid.UUID  `db:"id"`
	KeyHash     string     `db:"key_hash"`
	Prefix      string     `db:"prefix"`
	Description string     `db:"description"`
	ProductID   uuid.UUID  `db:"product_id"`
	Scope       Scope      `db:"scope"`
	IsEnabled   bool       `db:"is_enabled"`
	CreatedAt   time.Time  `db:"created_at"`
	LastUsedAt  *time.Time `db:"last_used_at"`
}

const (
	APIKeyPrefixLength = 8
	APIKeySecretLength = 32
	APIKeyFormat       = "lbo_%s_%s"
)
