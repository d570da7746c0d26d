package license

import "time"

type EventType string

const (
	EventActivation      EventType = "activation"
	EventSuspension      EventType = "suspension"
	EventResumption      EventType = "resumption"
	EventRevocation      EventType = "revocation"
	EventRenewal         EventType = "renewal"
	EventKeyRegeneration EventType = "key_regeneration"
)

// Event is one entry of a license's append-only history. The variants share
// a flat record; the constructors below decide which fields a variant sets.
// Key material never appears here, only its length and a short prefix.
type Event struct {
	Type           EventType  `json:"type"`
	At             time.Time  `json:"at"`
	Actor          string     `json:"actor"`
	Reason         string     `json:"reason,omitempty"`
	PreviousStatus Status     `json:"previous_status,omitempty"`
	OldExpiry      *time.Time `json:"old_expiry,omitempty"`
	NewExpiry      *time.Time `json:"new_expiry,omitempty"`
	KeyPrefix      string     `json:"key_prefix,omitempty"`
	OldKeyLength   int        `json:"old_key_length,omitempty"`
	NewKeyLength   int        `json:"new_key_length,omitempty"`
}

func NewTransitionEvent(t EventType, at time.Time, actor, reason string, previous Status) Event {
	return Event{
		Type:           t,
		At:             at,
		Actor:          actor,
		Reason:         reason,
		PreviousStatus: previous,
	}
}

func NewRenewalEvent(at time.Time, actor, reason string, previous Status, oldExpiry, newExpiry time.Time) Event {
	return Event{
		Type:           EventRenewal,
		At:             at,
		Actor:          actor,
		Reason:         reason,
		PreviousStatus: previous,
		OldExpiry:      &oldExpiry,
		NewExpiry:      &newExpiry,
	}
}

func NewKeyRegenerationEvent(at time.Time, actor, reason, newKey string, oldKeyLen int) Event {
	prefix := newKey
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return Event{
		Type:         EventKeyRegeneration,
		At:           at,
		Actor:        actor,
		Reason:       reason,
		KeyPrefix:    prefix,
		OldKeyLength: oldKeyLen,
		NewKeyLength: len(newKey),
	}
}
