package registry

import (
	"time"

	"github.com/google/uuid"
)

// Platform is the integration name recorded on every representation this
// process creates.
const Platform = "graygate"

// Representation is a locally registered stand-in for one mirrored remote
// resource. It is what downstream consumers address when they act on the
// resource, and it survives restarts so rediscovery adopts instead of
// duplicating.
type Representation struct {
	// ID is the mirrored resource id (globally unique; synthetic for
	// companion children).
	ID string `json:"id"`

	// Type is the resource type tag.
	Type string `json:"type"`

	// Name is the display name, refreshed from the remote resource.
	Name string `json:"name"`

	// ParentID links a companion child to its parent resource.
	ParentID *string `json:"parent_id,omitempty"`

	// Domain is the consumer-facing domain (switch, sensor).
	Domain string `json:"domain"`

	// Platform names the integration that owns this representation.
	Platform string `json:"platform"`

	// State is the last published state map.
	State map[string]any `json:"state,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of the representation.
func (r *Representation) DeepCopy() *Representation {
	if r == nil {
		return nil
	}
	cpy := *r
	if r.ParentID != nil {
		parent := *r.ParentID
		cpy.ParentID = &parent
	}
	cpy.State = deepCopyMap(r.State)
	return &cpy
}

// GenerateID returns a new unique identifier.
func GenerateID() string {
	return uuid.New().String()
}

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
		return v
	}
}
