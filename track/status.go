package track

// Assignment lifecycle statuses. in_transit is derived, never stored:
// an assignment reads as in_transit once pickup has occurred and
// breadcrumbs have started arriving.
const (
	StatusAssigned  = "assigned"
	StatusPickedUp  = "picked_up"
	StatusInTransit = "in_transit"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// IsTerminal reports whether a stored status permits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusDelivered || status == StatusCancelled
}

// transitions maps each explicit transition target to the stored statuses
// it is legal from. in_transit has no entry: it is not a transition target.
var transitions = map[string][]string{
	StatusPickedUp:  {StatusAssigned},
	StatusDelivered: {StatusPickedUp},
	StatusCancelled: {StatusAssigned, StatusPickedUp},
}

// LegalFrom returns the stored statuses from which a transition to target is legal.
func LegalFrom(target string) []string {
	return transitions[target]
}

// CanTransition reports whether a stored-status move is legal.
func CanTransition(from, to string) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// EffectiveStatus resolves the viewer-facing status from the stored status.
// A picked-up assignment with movement reads as in_transit.
func EffectiveStatus(stored string, hasMovement bool) string {
	if stored == StatusPickedUp && hasMovement {
		return StatusInTransit
	}
	return stored
}
