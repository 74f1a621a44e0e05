package catalog

import (
	"fmt"

	"github.com/nerrad567/gray-gate/internal/mirror"
)

// ChildSpec declares a companion resource derived from a nested flag on a
// parent record. The child exists only while the flag is present and
// boolean-typed on the parent's current payload.
type ChildSpec struct {
	// Suffix extends the parent id to form the synthetic child id:
	// "<parent-id>_<suffix>".
	Suffix string

	// Tag is the child's own type tag.
	Tag mirror.TypeTag

	// Path locates the boolean flag inside the parent's raw payload.
	Path []string

	// Label extends the parent's display name.
	Label string
}

// Spec declares how one remote resource type is mirrored: where it lives
// on the controller, which raw fields matter, and which companions it
// spawns.
type Spec struct {
	// Tag is the resource type identifier.
	Tag mirror.TypeTag

	// Path is the controller collection path (the REST resource name).
	Path string

	// Label is the human-readable type name.
	Label string

	// IDField is the raw field carrying the resource id. Defaults to "_id".
	IDField string

	// NameField is the raw field carrying the display name. Falls back to
	// the id when absent.
	NameField string

	// EnabledField is the raw field carrying the toggle. Empty means the
	// type has no enabled flag; such resources never produce
	// enabled/disabled events.
	EnabledField string

	// SignificantFields are the raw fields whose changes classify as
	// modified. Everything else on the payload is ignored noise
	// (counters, timestamps, internal bookkeeping).
	SignificantFields []string

	// Children declares companion resources derived from nested flags.
	Children []ChildSpec

	// Domain is the consumer-facing domain of the local representation.
	// Defaults to "switch" when the type has an enabled flag, "sensor"
	// otherwise.
	Domain string
}

// Normalize converts one raw remote record into a snapshot. Records
// without a usable id are rejected; everything else is tolerated, with
// absent fields simply missing from the significant-field map.
func (s Spec) Normalize(raw map[string]any) (mirror.Snapshot, error) {
	idField := s.IDField
	if idField == "" {
		idField = "_id"
	}
	id, ok := raw[idField].(string)
	if !ok || id == "" {
		return mirror.Snapshot{}, fmt.Errorf("%w: %s record has no %q", ErrMissingID, s.Tag, idField)
	}

	name := id
	if s.NameField != "" {
		if n, ok := raw[s.NameField].(string); ok && n != "" {
			name = n
		}
	}

	var enabled, enabledKnown bool
	if s.EnabledField != "" {
		enabled, enabledKnown = raw[s.EnabledField].(bool)
	}

	fields := make(map[string]any, len(s.SignificantFields))
	for _, key := range s.SignificantFields {
		if v, ok := raw[key]; ok {
			fields[key] = v
		}
	}

	snap := mirror.Snapshot{
		ID:           id,
		Type:         s.Tag,
		Name:         name,
		Enabled:      enabled,
		EnabledKnown: enabledKnown,
		Fields:       fields,
		Raw:          raw,
	}
	return snap.Clone(), nil
}

// ExpandChildren derives the companion snapshots that currently exist for
// a parent. A child is produced only when its flag is present on the
// parent payload and boolean-typed; any other shape means the companion
// does not exist this cycle.
func (s Spec) ExpandChildren(parent mirror.Snapshot) []mirror.Snapshot {
	if len(s.Children) == 0 {
		return nil
	}

	var children []mirror.Snapshot
	for _, child := range s.Children {
		value, ok := lookupPath(parent.Raw, child.Path)
		if !ok {
			continue
		}
		flag, ok := value.(bool)
		if !ok {
			continue
		}
		children = append(children, mirror.Snapshot{
			ID:           parent.ID + "_" + child.Suffix,
			Type:         child.Tag,
			Name:         parent.Name + " " + child.Label,
			Enabled:      flag,
			EnabledKnown: true,
			ParentID:     parent.ID,
			Fields:       map[string]any{},
		})
	}
	return children
}

// Construct builds the local representation for a snapshot of this type
// or one of its children.
func (s Spec) Construct(snap mirror.Snapshot) mirror.Representation {
	domain := s.Domain
	if domain == "" {
		if snap.EnabledKnown {
			domain = "switch"
		} else {
			domain = "sensor"
		}
	}
	return mirror.Representation{
		ID:       snap.ID,
		Type:     snap.Type,
		Name:     snap.Name,
		ParentID: snap.ParentID,
		Domain:   domain,
		State:    snap.State(),
	}
}

// Registration binds the spec into the reconciliation engine.
func (s Spec) Registration() mirror.TypeRegistration {
	return mirror.TypeRegistration{
		Tag:       s.Tag,
		Path:      s.Path,
		Label:     s.Label,
		Normalize: s.Normalize,
		Children:  s.ExpandChildren,
		Construct: s.Construct,
	}
}

// Registrations converts a spec table into engine registrations.
func Registrations(specs []Spec) []mirror.TypeRegistration {
	regs := make([]mirror.TypeRegistration, 0, len(specs))
	for _, s := range specs {
		regs = append(regs, s.Registration())
	}
	return regs
}

// lookupPath walks nested maps along the given key path.
func lookupPath(m map[string]any, path []string) (any, bool) {
	if len(path) == 0 || m == nil {
		return nil, false
	}
	var current any = m
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
