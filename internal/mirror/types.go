package mirror

import (
	"time"
)

// TypeTag identifies one mirrored resource type (e.g. "port_forward").
type TypeTag string

// Action classifies a detected transition between two consecutive snapshots.
type Action string

// Action constants.
const (
	ActionCreated  Action = "created"
	ActionEnabled  Action = "enabled"
	ActionDisabled Action = "disabled"
	ActionModified Action = "modified"
	ActionDeleted  Action = "deleted"
)

// Snapshot is the state of one remote resource as observed in one fetch
// cycle. Snapshots are built once per cycle and never mutated in place; a
// new cycle supersedes the whole set.
type Snapshot struct {
	// ID is globally unique across all resource types in a cycle.
	// Child snapshots use a synthetic id derived from the parent's.
	ID string

	// Type is the resource type tag.
	Type TypeTag

	// Name is the human-readable display name.
	Name string

	// Enabled is the discriminating toggle. EnabledKnown is false when the
	// remote payload carried no usable enabled flag; such snapshots never
	// produce enabled/disabled events.
	Enabled      bool
	EnabledKnown bool

	// ParentID is set on companion child snapshots.
	ParentID string

	// Fields holds the significant fields used for modified detection.
	Fields map[string]any

	// Raw is the opaque remote payload, retained for pass-through updates.
	Raw map[string]any
}

// State returns the consumer-facing state map for this snapshot: the
// enabled flag (when known) plus all significant fields. The result is an
// independent copy.
func (s Snapshot) State() map[string]any {
	state := deepCopyMap(s.Fields)
	if state == nil {
		state = make(map[string]any, 1)
	}
	if s.EnabledKnown {
		state["enabled"] = s.Enabled
	}
	return state
}

// Clone returns an independent deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	cpy := s
	cpy.Fields = deepCopyMap(s.Fields)
	cpy.Raw = deepCopyMap(s.Raw)
	return cpy
}

// ChangeEvent is one classified transition, produced by the change detector
// and consumed exactly once by the trigger dispatcher.
type ChangeEvent struct {
	ID          string         `json:"id"`
	ResourceID  string         `json:"resource_id"`
	Type        TypeTag        `json:"type"`
	Action      Action         `json:"action"`
	DisplayName string         `json:"display_name"`
	OldState    map[string]any `json:"old_state,omitempty"`
	NewState    map[string]any `json:"new_state,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Source      string         `json:"source"`
}

// Representation is a locally registered, controllable stand-in for one
// mirrored resource, handed to the Registry collaborator on discovery.
type Representation struct {
	ID       string
	Type     TypeTag
	Name     string
	ParentID string
	Domain   string
	State    map[string]any
}

// TypeRegistration binds one resource type into the reconciliation engine:
// where to fetch it, how to normalize raw records into snapshots, how to
// derive companion children, and how to construct its local representation.
// Adding a mirrored type means adding one registration, not touching the
// engine.
type TypeRegistration struct {
	// Tag is the resource type identifier.
	Tag TypeTag

	// Path is the fetch key handed to the Fetcher (the collection path on
	// the remote controller).
	Path string

	// Label is the human-readable type name used in logs.
	Label string

	// Normalize converts one raw remote record into a snapshot. A returned
	// error marks the record malformed; it is dropped and logged, and the
	// rest of the batch is still processed.
	Normalize func(raw map[string]any) (Snapshot, error)

	// Children derives companion child snapshots from a parent. Children
	// exist only while their precondition holds on the parent's current
	// payload; absence on a later cycle removes them independently of the
	// parent.
	Children func(parent Snapshot) []Snapshot

	// Construct builds the local representation registered for a snapshot
	// of this type (or one of its children).
	Construct func(snap Snapshot) Representation
}

// Logger defines the logging interface used by the mirror engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives are safe to copy by value.
		return v
	}
}
