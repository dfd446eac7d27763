package types

// Event is a decoded chain event. Events are read-only snapshots; consumers
// must not mutate Fields.
type Event struct {
	Pallet    string
	Variant   string
	Fields    []any
	Block     BlockRef
	Finalized bool
	// Index is the position of the event within its block.
	Index uint32
}

// EventFilter selects events by pallet and variant. Empty fields match
// everything, so the zero filter matches all events.
type EventFilter struct {
	Pallet  string
	Variant string
}

func (f EventFilter) Matches(ev *Event) bool {
	if f.Pallet != "" && f.Pallet != ev.Pallet {
		return false
	}
	if f.Variant != "" && f.Variant != ev.Variant {
		return false
	}
	return true
}
