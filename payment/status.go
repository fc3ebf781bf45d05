package payment

import "github.com/Sunny-Hasho/Eventura-v1/fault"

// transitions is the closed set of legal status edges. Anything absent here
// is rejected; there is no string parsing and no default branch that lets an
// unmapped edge through.
var transitions = map[Status][]Status{
	StatusAwaitingPayment: {StatusEscrowed, StatusExpired},
	StatusEscrowed:        {StatusPendingRelease, StatusRefunded},
	StatusPendingRelease:  {StatusReleased, StatusDisputed},
	StatusDisputed:        {StatusRefunded},
	StatusReleased:        nil,
	StatusRefunded:        nil,
	StatusExpired:         nil,
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a payment in this status can never move again.
func IsTerminal(s Status) bool {
	allowed, known := transitions[s]
	return known && len(allowed) == 0
}

// validateTransition returns an InvalidState fault naming both statuses when
// the edge is not in the table.
func validateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fault.InvalidState("payment is %s, cannot move to %s", from, to)
	}
	return nil
}
