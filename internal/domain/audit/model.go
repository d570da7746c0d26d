package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate          Action = "create"
	ActionUpdate          Action = "update"
	ActionActivate        Action = "activate"
	ActionSuspend         Action = "suspend"
	ActionResume          Action = "resume"
	ActionRevoke          Action = "revoke"
	ActionRenew           Action = "renew"
	ActionRegenerateKey   Action = "regenerate_key"
	ActionKeyActivation   Action = "key_activation"
	ActionKeyDeactivation Action = "key_deactivation"
	ActionKeyRotation     Action = "key_rotation"
	ActionExpiryNotice    Action = "expiry_notice"
)

// Entry is an immutable record of one mutating action. Entries are only ever
// inserted; there is no update or delete path.
type Entry struct {
	ID         uuid.UUID       `db:"id"`
	EntityType string          `db:"entity_type"`
	EntityID   uuid.UUID       `db:"entity_id"`
	Action     Action          `db:"action"`
	Actor      string          `db:"actor"`
	Reason     sql.NullString  `db:"reason"`
	Before     json.RawMessage `db:"before_state"`
	After      json.RawMessage `db:"after_state"`
	CreatedAt  time.Time       `db:"created_at"`
}

type ListParams struct {
	EntityType *string
	EntityID   *uuid.UUID
	Action     *Action
	Limit      int
	Offset     int
}
