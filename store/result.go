package store

import (
	"fmt"

	"github.com/jacentio/strata/mapping"
)

// Action classifies a persisted entity.
type Action int

const (
	// ActionUnknown is recorded when the backend gave no signal either way.
	ActionUnknown Action = iota

	// ActionInsert means the backend assigned a new identifier.
	ActionInsert

	// ActionUpdate means an existing identifier was reused.
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "INSERT"
	case ActionUpdate:
		return "UPDATE"
	case ActionUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Entry is the outcome of persisting one entity.
type Entry struct {
	ID     string
	Object *mapping.StoreObject
	Action Action

	// Entity is the saved entity, with its id assigned.
	Entity any
}

// WriteResult holds the entries of a successful batch in completion order.
type WriteResult struct {
	Entries []Entry
}

// Len returns the number of entries.
func (r *WriteResult) Len() int { return len(r.Entries) }

// IDs returns the entry identifiers in completion order.
func (r *WriteResult) IDs() []string {
	ids := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Count returns the number of entries classified as a.
func (r *WriteResult) Count(a Action) int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == a {
			n++
		}
	}
	return n
}
