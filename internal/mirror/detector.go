package mirror

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Detect compares two consecutive snapshot sets and returns the classified
// change events, ordered by resource id.
//
// Classification per resource id:
//
//   - present only in current: created
//   - present only in previous: deleted
//   - enabled flag flipped (both snapshots carry a known flag): enabled or
//     disabled — this takes precedence over any other field difference in
//     the same cycle
//   - any significant field differs otherwise: modified
//
// Detect is pure: it reads both sets, mutates neither, and touches no
// external state. Resources whose snapshots are identical produce nothing.
func Detect(previous, current map[string]Snapshot, now time.Time, source string) []ChangeEvent {
	ids := make([]string, 0, len(previous)+len(current))
	seen := make(map[string]struct{}, len(previous)+len(current))
	for id := range previous {
		ids = append(ids, id)
		seen[id] = struct{}{}
	}
	for id := range current {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var events []ChangeEvent
	for _, id := range ids {
		prev, hadPrev := previous[id]
		curr, hasCurr := current[id]

		switch {
		case !hadPrev:
			events = append(events, newEvent(ActionCreated, curr, nil, curr.State(), now, source))

		case !hasCurr:
			events = append(events, newEvent(ActionDeleted, prev, prev.State(), nil, now, source))

		case prev.EnabledKnown && curr.EnabledKnown && prev.Enabled != curr.Enabled:
			// The toggle flip wins even when other fields changed too.
			action := ActionDisabled
			if curr.Enabled {
				action = ActionEnabled
			}
			events = append(events, newEvent(action, curr, prev.State(), curr.State(), now, source))

		case significantDiff(prev, curr):
			events = append(events, newEvent(ActionModified, curr, prev.State(), curr.State(), now, source))
		}
	}

	return events
}

func newEvent(action Action, snap Snapshot, oldState, newState map[string]any, now time.Time, source string) ChangeEvent {
	return ChangeEvent{
		ID:          uuid.New().String(),
		ResourceID:  snap.ID,
		Type:        snap.Type,
		Action:      action,
		DisplayName: snap.Name,
		OldState:    oldState,
		NewState:    newState,
		Timestamp:   now,
		Source:      source,
	}
}

// significantDiff reports whether any significant field differs between two
// snapshots of the same resource. A field absent from one side but present
// in the other counts as a difference; absent from both does not.
func significantDiff(prev, curr Snapshot) bool {
	if len(prev.Fields) != len(curr.Fields) {
		return true
	}
	for key, prevVal := range prev.Fields {
		currVal, ok := curr.Fields[key]
		if !ok {
			return true
		}
		if !valueEqual(prevVal, currVal) {
			return true
		}
	}
	return false
}

// valueEqual compares two decoded JSON values structurally.
func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, present := bv[k]
			if !present || !valueEqual(v, bval) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
