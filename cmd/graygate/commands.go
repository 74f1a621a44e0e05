package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-gate/internal/catalog"
	"github.com/nerrad567/gray-gate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-gate/internal/mirror"
)

// commandApplyTimeout bounds each controller mutation pushed from the bus.
const commandApplyTimeout = 15 * time.Second

// Applier pushes a partial update for one controller record.
type Applier interface {
	Apply(ctx context.Context, path, id string, patch map[string]any) error
}

// MutationNoter records a pushed mutation for optimistic state and
// realtime polling.
type MutationNoter interface {
	NoteLocalMutation(id string, tag mirror.TypeTag, expected map[string]any)
}

// commandRouter turns bus command messages into controller mutations.
//
// Commands arrive on graygate/command/{type}/{id} with a JSON object of
// desired values. Only the enabled flag and the type's significant fields
// are forwarded; anything else on the payload is dropped. Commands on
// companion children are rewritten into a patch on their parent's nested
// flag.
type commandRouter struct {
	specs    map[mirror.TypeTag]catalog.Spec
	children map[mirror.TypeTag]childBinding
	applier  Applier
	noter    MutationNoter
	logger   *logging.Logger
}

// childBinding ties a child type tag back to its parent spec and flag.
type childBinding struct {
	parent catalog.Spec
	child  catalog.ChildSpec
}

func newCommandRouter(specs []catalog.Spec, applier Applier, noter MutationNoter, logger *logging.Logger) *commandRouter {
	r := &commandRouter{
		specs:    make(map[mirror.TypeTag]catalog.Spec, len(specs)),
		children: make(map[mirror.TypeTag]childBinding),
		applier:  applier,
		noter:    noter,
		logger:   logger,
	}
	for _, spec := range specs {
		r.specs[spec.Tag] = spec
		for _, child := range spec.Children {
			r.children[child.Tag] = childBinding{parent: spec, child: child}
		}
	}
	return r
}

// Handle processes one command message. Invalid commands are logged and
// dropped; the error return feeds the MQTT client's handler logging.
func (r *commandRouter) Handle(topic string, payload []byte) error {
	tag, id, err := parseCommandTopic(topic)
	if err != nil {
		r.logger.Warn("invalid command topic", "topic", topic, "error", err)
		return err
	}

	var desired map[string]any
	if err := json.Unmarshal(payload, &desired); err != nil {
		r.logger.Warn("invalid command payload", "topic", topic, "error", err)
		return fmt.Errorf("decoding command payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandApplyTimeout)
	defer cancel()

	if binding, ok := r.children[tag]; ok {
		return r.handleChildCommand(ctx, binding, tag, id, desired)
	}

	spec, ok := r.specs[tag]
	if !ok {
		r.logger.Warn("command for unknown resource type", "type", string(tag), "id", id)
		return fmt.Errorf("unknown resource type %q", tag)
	}
	return r.handleCommand(ctx, spec, id, desired)
}

func (r *commandRouter) handleCommand(ctx context.Context, spec catalog.Spec, id string, desired map[string]any) error {
	patch := filterPatch(spec, desired)
	if len(patch) == 0 {
		r.logger.Warn("command carried no applicable fields",
			"type", string(spec.Tag), "id", id)
		return fmt.Errorf("no applicable fields in command for %s/%s", spec.Tag, id)
	}

	if err := r.applier.Apply(ctx, spec.Path, id, patch); err != nil {
		r.logger.Error("controller mutation failed",
			"type", string(spec.Tag), "id", id, "error", err)
		return err
	}

	r.noter.NoteLocalMutation(id, spec.Tag, patch)
	r.logger.Info("command applied", "type", string(spec.Tag), "id", id)
	return nil
}

// handleChildCommand rewrites a command on a companion child into a patch
// on the parent's nested flag. Only the enabled flag is meaningful on a
// child.
func (r *commandRouter) handleChildCommand(ctx context.Context, binding childBinding, tag mirror.TypeTag, id string, desired map[string]any) error {
	enabled, ok := desired["enabled"].(bool)
	if !ok {
		r.logger.Warn("child command requires boolean enabled field",
			"type", string(tag), "id", id)
		return fmt.Errorf("child command for %s/%s requires boolean enabled", tag, id)
	}

	suffix := "_" + binding.child.Suffix
	if !strings.HasSuffix(id, suffix) {
		r.logger.Warn("child command id does not match its type",
			"type", string(tag), "id", id)
		return fmt.Errorf("malformed child id %q for type %s", id, tag)
	}
	parentID := strings.TrimSuffix(id, suffix)

	patch := nestedPatch(binding.child.Path, enabled)
	if err := r.applier.Apply(ctx, binding.parent.Path, parentID, patch); err != nil {
		r.logger.Error("controller mutation failed",
			"type", string(tag), "id", id, "error", err)
		return err
	}

	r.noter.NoteLocalMutation(id, tag, map[string]any{"enabled": enabled})
	r.logger.Info("command applied", "type", string(tag), "id", id, "parent_id", parentID)
	return nil
}

// nestedPatch wraps a flag value in the object structure its path
// describes, so a child flag nested below the parent's top level patches
// the right field.
func nestedPatch(path []string, value any) map[string]any {
	patch := make(map[string]any)
	leaf := patch
	for _, key := range path[:len(path)-1] {
		next := make(map[string]any)
		leaf[key] = next
		leaf = next
	}
	leaf[path[len(path)-1]] = value
	return patch
}

// filterPatch keeps only the fields a command may set: the enabled flag
// and the type's significant fields.
func filterPatch(spec catalog.Spec, desired map[string]any) map[string]any {
	patch := make(map[string]any)
	for key, value := range desired {
		if key == spec.EnabledField || (spec.EnabledField != "" && key == "enabled") {
			patch[spec.EnabledField] = value
			continue
		}
		for _, allowed := range spec.SignificantFields {
			if key == allowed {
				patch[key] = value
				break
			}
		}
	}
	return patch
}

// parseCommandTopic extracts the type tag and resource id from a command
// topic of the form graygate/command/{type}/{id}.
func parseCommandTopic(topic string) (mirror.TypeTag, string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "command" {
		return "", "", fmt.Errorf("malformed command topic %q", topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("malformed command topic %q", topic)
	}
	return mirror.TypeTag(parts[2]), parts[3], nil
}
