package auth

// OwnershipOutcome is the three-way result of comparing a caller against an
// event's recorded owner. "No owner" and "wrong owner" resolve differently:
// a legacy event without an owner adopts the caller, a mismatch is forbidden.
type OwnershipOutcome int

const (
	OwnerNone OwnershipOutcome = iota
	OwnerMatch
	OwnerMismatch
)

// CheckOwnership compares the provider id stored on the event with the
// provider id claim of the caller.
func CheckOwnership(recorded, callerProviderID string) OwnershipOutcome {
	if recorded == "" {
		return OwnerNone
	}
	if recorded == callerProviderID {
		return OwnerMatch
	}
	return OwnerMismatch
}

// Allowed reports whether the outcome permits the mutation.
func (o OwnershipOutcome) Allowed() bool {
	return o == OwnerNone || o == OwnerMatch
}
