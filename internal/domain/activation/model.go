package activation

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("activation not found")

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Activation binds one license key to one machine.
type Activation struct {
	ID                 uuid.UUID      `db:"id"`
	LicenseID          uuid.UUID      `db:"license_id"`
	ProductKey         string         `db:"product_key"`
	MachineID          string         `db:"machine_id"`
	MachineFingerprint sql.NullString `db:"machine_fingerprint"`
	MachineName        sql.NullString `db:"machine_name"`
	Status             Status         `db:"status"`
	Signature          string         `db:"signature"`
	ActivatedAt        time.Time      `db:"activated_at"`
	DeactivatedAt      sql.NullTime   `db:"deactivated_at"`
}
