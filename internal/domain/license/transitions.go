package license

import "slices"

type transition struct {
	from Status
	to   Status
}

// validTransitions is the single source of truth for the license lifecycle.
// Revoked is terminal. Reactivation of an expired license is policy-gated in
// the service layer (renewal, recent key regeneration) but legal here.
var validTransitions = map[transition]bool{
	{StatusPending, StatusActive}:  true,
	{StatusPending, StatusRevoked}: true,
	{StatusPending, StatusExpired}: true,

	{StatusActive, StatusSuspended}:   true,
	{StatusActive, StatusGracePeriod}: true,
	{StatusActive, StatusExpired}:     true,
	{StatusActive, StatusRevoked}:     true,

	{StatusSuspended, StatusActive}:  true,
	{StatusSuspended, StatusExpired}: true,
	{StatusSuspended, StatusRevoked}: true,

	{StatusGracePeriod, StatusActive}:  true,
	{StatusGracePeriod, StatusExpired}: true,
	{StatusGracePeriod, StatusRevoked}: true,

	{StatusExpired, StatusActive}:  true,
	{StatusExpired, StatusRevoked}: true,
}

func CanTransition(from, to Status) bool {
	return validTransitions[transition{from, to}]
}

// TransitionsFrom returns the legal target states from the given state,
// sorted for deterministic callers.
func TransitionsFrom(from Status) []Status {
	targets := make([]Status, 0, 4)
	for t := range validTransitions {
		if t.from == from {
			targets = append(targets, t.to)
		}
	}
	slices.Sort(targets)
	return targets
}
