package mirror

import (
	"context"
)

// Registry is the local-representation collaborator. Implementations
// persist representations so that adoption survives restarts.
type Registry interface {
	// Lookup reports whether a representation already exists for the given
	// consumer-facing domain, platform, and resource id.
	Lookup(ctx context.Context, domain, platform, id string) (bool, error)

	// Register creates a new representation.
	Register(ctx context.Context, rep Representation) error

	// Deregister removes the representation for a resource id.
	Deregister(ctx context.Context, id string) error
}

// Lifecycle owns the set of known resource ids and drives representation
// creation and removal against the Registry.
//
// The known set is mutated here and nowhere else. Discovery prefers
// adoption: an existing registry entry is reused rather than duplicated,
// which is what makes restarts idempotent.
type Lifecycle struct {
	registry Registry
	platform string
	logger   Logger

	known map[string]TypeTag

	baseline bool
}

// NewLifecycle creates a lifecycle manager bound to a registry.
func NewLifecycle(registry Registry, platform string, logger Logger) *Lifecycle {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Lifecycle{
		registry: registry,
		platform: platform,
		logger:   logger,
		known:    make(map[string]TypeTag),
	}
}

// Known reports whether a resource id is currently tracked.
func (l *Lifecycle) Known(id string) bool {
	_, ok := l.known[id]
	return ok
}

// KnownCount returns the number of tracked resource ids.
func (l *Lifecycle) KnownCount() int {
	return len(l.known)
}

// BaselineEstablished reports whether at least one full successful cycle
// has completed since startup.
func (l *Lifecycle) BaselineEstablished() bool {
	return l.baseline
}

// MarkBaseline records that a full cycle has completed. Until this is
// called, RemoveStale is a no-op: an empty known set at startup must not
// be mistaken for mass deletion.
func (l *Lifecycle) MarkBaseline() {
	l.baseline = true
}

// Discover walks the current cycle's snapshots and ensures every resource
// has a representation. Unknown ids are looked up in the registry first
// and adopted when found; only genuinely new resources are registered.
// A failure on one id is logged and skipped — the id stays unknown and is
// retried on the next cycle.
func (l *Lifecycle) Discover(ctx context.Context, regs []TypeRegistration, current map[TypeTag][]Snapshot) {
	byTag := make(map[TypeTag]TypeRegistration, len(regs))
	for _, reg := range regs {
		byTag[reg.Tag] = reg
	}

	for tag, snaps := range current {
		for _, snap := range snaps {
			if _, ok := l.known[snap.ID]; ok {
				continue
			}

			reg, ok := byTag[snap.Type]
			if !ok {
				reg, ok = byTag[tag]
			}
			if !ok || reg.Construct == nil {
				continue
			}
			rep := reg.Construct(snap)

			exists, err := l.registry.Lookup(ctx, rep.Domain, l.platform, snap.ID)
			if err != nil {
				l.logger.Warn("registry lookup failed",
					"resource_id", snap.ID, "type", string(snap.Type), "error", err)
				continue
			}

			if exists {
				l.known[snap.ID] = snap.Type
				l.logger.Debug("representation adopted",
					"resource_id", snap.ID, "type", string(snap.Type))
				continue
			}

			if err := l.registry.Register(ctx, rep); err != nil {
				l.logger.Warn("representation registration failed",
					"resource_id", snap.ID, "type", string(snap.Type), "error", err)
				continue
			}
			l.known[snap.ID] = snap.Type
			l.logger.Info("representation registered",
				"resource_id", snap.ID, "type", string(snap.Type), "name", snap.Name)
		}
	}
}

// RemoveStale deregisters representations for ids absent from the current
// cycle. Gated on the baseline, and ids belonging to a type whose fetch
// failed this cycle are left alone — absence there means "unknown", not
// "deleted". A failed deregistration keeps the id known so removal is
// retried next cycle.
func (l *Lifecycle) RemoveStale(ctx context.Context, currentIDs map[string]struct{}, failedTypes map[TypeTag]bool) {
	if !l.baseline {
		return
	}

	stale := make(map[string]TypeTag)
	for id, tag := range l.known {
		if failedTypes[tag] {
			continue
		}
		if _, ok := currentIDs[id]; ok {
			continue
		}
		stale[id] = tag
	}

	for id, tag := range stale {
		if err := l.registry.Deregister(ctx, id); err != nil {
			l.logger.Warn("representation removal failed",
				"resource_id", id, "type", string(tag), "error", err)
			continue
		}
		delete(l.known, id)
		l.logger.Info("representation removed", "resource_id", id, "type", string(tag))
	}
}
