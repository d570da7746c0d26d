package license

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("license not found")
	ErrUpdateFailed = errors.New("license update failed")
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusActive      Status = "active"
	StatusSuspended   Status = "suspended"
	StatusGracePeriod Status = "grace_period"
	StatusExpired     Status = "expired"
	StatusRevoked     Status = "revoked"
)

type Model string

const (
	ModelProductKey  Model = "product_key"
	ModelLicenseFile Model = "license_file"
	ModelVolumetric  Model = "volumetric"
)

type License struct {
	ID               uuid.UUID      `db:"id"`
	Code             string         `db:"code"`
	ProductID        uuid.UUID      `db:"product_id"`
	ConsumerID       uuid.UUID      `db:"consumer_id"`
	Tier             sql.NullString `db:"tier"`
	LicenseKey       string         `db:"license_key"`
	Model            Model          `db:"model"`
	Status           Status         `db:"status"`
	ValidFrom        time.Time      `db:"valid_from"`
	ValidTo          time.Time      `db:"valid_to"`
	MaxAllowedUsers  sql.NullInt32  `db:"max_allowed_users"`
	MaxActivations   int32          `db:"max_activations"`
	Metadata         map[string]any `db:"metadata"`
	Events           []Event        `db:"events"`
	Signature        sql.NullString `db:"signature"`
	PublicKey        sql.NullString `db:"public_key"`
	RevokedAt        sql.NullTime   `db:"revoked_at"`
	RevocationReason sql.NullString `db:"revocation_reason"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// SetMeta writes one metadata entry, allocating the bag on first use.
func (l *License) SetMeta(key string, value any) {
	if l.Metadata == nil {
		l.Metadata = make(map[string]any)
	}
	l.Metadata[key] = value
}

func (l *License) AppendEvent(e Event) {
	l.Events = append(l.Events, e)
}

// WithinValidity reports whether now falls inside [ValidFrom, ValidTo].
func (l *License) WithinValidity(now time.Time) bool {
	return !now.Before(l.ValidFrom) && !now.After(l.ValidTo)
}

type ListParams struct {
	Status     *Status
	Model      *Model
	ProductID  *uuid.UUID
	ConsumerID *uuid.UUID
	Limit      int
	Offset     int
	SortBy     string
	SortOrder  string
}

type Summary struct {
	Total         int64
	StatusCounts  map[Status]int64
	ModelCounts   map[Model]int64
	ProductCounts map[string]int64
}
