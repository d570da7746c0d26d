package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to active", StatusPending, StatusActive, true},
		{"pending to revoked", StatusPending, StatusRevoked, true},
		{"pending to suspended", StatusPending, StatusSuspended, false},
		{"active to suspended", StatusActive, StatusSuspended, true},
		{"active to grace period", StatusActive, StatusGracePeriod, true},
		{"active to pending", StatusActive, StatusPending, false},
		{"suspended to active", StatusSuspended, StatusActive, true},
		{"grace period to active", StatusGracePeriod, StatusActive, true},
		{"expired to active", StatusExpired, StatusActive, true},
		{"expired to suspended", StatusExpired, StatusSuspended, false},
		{"revoked is terminal", StatusRevoked, StatusActive, false},
		{"revoked to pending", StatusRevoked, StatusPending, false},
		{"self transition not listed", StatusActive, StatusActive, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestRevokedHasNoOutgoingTransitions(t *testing.T) {
	assert.Empty(t, TransitionsFrom(StatusRevoked))
}

func TestTransitionsFromSorted(t *testing.T) {
	targets := TransitionsFrom(StatusActive)
	assert.Equal(t, []Status{StatusExpired, StatusGracePeriod, StatusRevoked, StatusSuspended}, targets)
}

func TestEveryStatusCanReachRevokedExceptRevoked(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusActive, StatusSuspended, StatusGracePeriod, StatusExpired} {
		assert.True(t, CanTransition(from, StatusRevoked), "expected %s -> revoked to be legal", from)
	}
}
