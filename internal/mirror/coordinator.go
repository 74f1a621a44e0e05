package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the coordinator's cycle state.
type State string

// Coordinator states. Transitions: Idle -> Fetching -> {Ready | Degraded |
// AuthFailed} -> Idle. Failures inside a cycle return to Idle with the
// previous snapshot intact; they never wedge the loop.
const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateReady      State = "ready"
	StateDegraded   State = "degraded"
	StateAuthFailed State = "auth_failed"
)

// Fetcher retrieves the raw records of one resource collection from the
// remote controller. Failures are classified with the package sentinel
// errors (ErrUnsupported, ErrAuthFailed, *ThrottledError); anything else
// is treated as transient.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]map[string]any, error)
}

// ReauthHandler is asked to re-establish controller credentials after an
// authentication failure. Optional.
type ReauthHandler interface {
	RequestReauth(ctx context.Context)
}

// CycleRecorder receives per-cycle summaries. Optional and best-effort.
type CycleRecorder interface {
	RecordCycle(state string, events int, duration time.Duration)
}

// Status is a point-in-time view of the coordinator, served by the ops API.
type Status struct {
	State            State     `json:"state"`
	BaselineDone     bool      `json:"baseline_established"`
	KnownResources   int       `json:"known_resources"`
	Cycles           uint64    `json:"cycles"`
	EventsDispatched uint64    `json:"events_dispatched"`
	LastCycleAt      time.Time `json:"last_cycle_at,omitzero"`
	LastCycleState   State     `json:"last_cycle_state,omitempty"`
	UnsupportedTypes []string  `json:"unsupported_types,omitempty"`
}

// CoordinatorOptions configures a Coordinator. Fetcher, Registrations,
// Registry, Dispatcher and Scheduler are required.
type CoordinatorOptions struct {
	Fetcher       Fetcher
	Registrations []TypeRegistration
	Registry      Registry
	Dispatcher    *Dispatcher
	Scheduler     *Scheduler
	Logger        Logger

	// Platform names this integration in registry lookups.
	Platform string

	// OptimisticExpiry bounds how long a local mutation overlays state
	// without remote confirmation.
	OptimisticExpiry time.Duration

	// Reauth is invoked after an authentication failure. Optional.
	Reauth ReauthHandler

	// Cycles receives per-cycle summaries. Optional.
	Cycles CycleRecorder
}

// Coordinator owns the reconciliation cycle: fetch every registered type,
// detect and dispatch changes, reconcile representations, and settle
// optimistic state. Exactly one cycle runs at a time; requests arriving
// mid-cycle are queued by the scheduler, never run concurrently.
type Coordinator struct {
	fetcher       Fetcher
	registrations []TypeRegistration
	dispatcher    *Dispatcher
	scheduler     *Scheduler
	lifecycle     *Lifecycle
	optimistic    *OptimisticStore
	reauth        ReauthHandler
	cycles        CycleRecorder
	logger        Logger

	// mu guards everything below. RunCycle is the only writer; readers
	// are Status and NoteLocalMutation, which may run on bus goroutines.
	mu          sync.RWMutex
	state       State
	prev        map[string]Snapshot
	prevByType  map[TypeTag][]Snapshot
	unsupported map[TypeTag]bool
	stats       cycleStats

	now func() time.Time
}

type cycleStats struct {
	cycles         uint64
	events         uint64
	lastCycleAt    time.Time
	lastCycleState State
}

// NewCoordinator creates a coordinator from options.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("mirror: fetcher is required")
	}
	if len(opts.Registrations) == 0 {
		return nil, errors.New("mirror: at least one type registration is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("mirror: registry is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("mirror: dispatcher is required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("mirror: scheduler is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	platform := opts.Platform
	if platform == "" {
		platform = "graygate"
	}

	return &Coordinator{
		fetcher:       opts.Fetcher,
		registrations: opts.Registrations,
		dispatcher:    opts.Dispatcher,
		scheduler:     opts.Scheduler,
		lifecycle:     NewLifecycle(opts.Registry, platform, logger),
		optimistic:    NewOptimisticStore(opts.OptimisticExpiry),
		reauth:        opts.Reauth,
		cycles:        opts.Cycles,
		logger:        logger,
		state:         StateIdle,
		prev:          make(map[string]Snapshot),
		prevByType:    make(map[TypeTag][]Snapshot),
		unsupported:   make(map[TypeTag]bool),
		now:           time.Now,
	}, nil
}

// Run consumes cycle requests from the scheduler until the context is
// cancelled. Cycle errors are logged, never fatal to the loop.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("reconciliation coordinator started",
		"types", len(c.registrations))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("reconciliation coordinator stopped")
			return ctx.Err()
		case trigger := <-c.scheduler.Requests():
			if err := c.RunCycle(ctx, trigger); err != nil {
				c.logger.Warn("reconciliation cycle failed",
					"trigger", string(trigger), "error", err)
			}
		}
	}
}

// NoteLocalMutation records a mutation pushed to the controller: the
// expected post-mutation values overlay the resource's state immediately,
// activity is registered so polling tightens, and the scheduler is moved
// to the realtime tier until a fetch confirms or the expectation expires.
func (c *Coordinator) NoteLocalMutation(id string, tag TypeTag, expected map[string]any) {
	c.optimistic.Expect(id, tag, expected)
	c.scheduler.RegisterActivity(id)
	c.scheduler.SetAwaitingConfirmation(true)

	c.mu.RLock()
	snap, ok := c.prev[id]
	c.mu.RUnlock()
	if ok {
		now := c.now()
		if err := c.dispatcher.PublishState(snap, c.optimistic.Overlay(id, snap.State()), now); err != nil {
			c.logger.Warn("optimistic state publish failed", "resource_id", id, "error", err)
		}
	}
}

// Status returns a point-in-time view for the ops API.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var unsupported []string
	for tag := range c.unsupported {
		unsupported = append(unsupported, string(tag))
	}

	return Status{
		State:            c.state,
		BaselineDone:     c.lifecycle.BaselineEstablished(),
		KnownResources:   c.lifecycle.KnownCount(),
		Cycles:           c.stats.cycles,
		EventsDispatched: c.stats.events,
		LastCycleAt:      c.stats.lastCycleAt,
		LastCycleState:   c.stats.lastCycleState,
		UnsupportedTypes: unsupported,
	}
}

// RunCycle executes one full reconciliation cycle.
func (c *Coordinator) RunCycle(ctx context.Context, trigger CycleTrigger) error {
	started := c.now()
	dirty := c.scheduler.TakeDirty()
	c.setState(StateFetching)

	c.logger.Debug("cycle started", "trigger", string(trigger), "dirty", len(dirty))

	currentByType, failed, err := c.fetchAll(ctx)
	if err != nil {
		// Auth failure or throttle: previous snapshot preserved, no
		// events, no lifecycle changes.
		c.setState(StateIdle)
		return err
	}

	current, err := c.flatten(currentByType)
	if err != nil {
		c.setState(StateIdle)
		return err
	}

	c.mu.RLock()
	prev := c.prev
	c.mu.RUnlock()

	events := Detect(prev, current, started, string(trigger))

	c.lifecycle.Discover(ctx, c.registrations, currentByType)

	currentIDs := make(map[string]struct{}, len(current))
	for id := range current {
		currentIDs[id] = struct{}{}
	}
	c.lifecycle.RemoveStale(ctx, currentIDs, failed)

	dispatched := c.publish(events, current, started)

	// Remote truth confirms pending mutations for every type that fetched
	// cleanly; expired expectations revert visibly. A confirmed resource
	// gets its retained state republished from the fresh snapshot, so a
	// fetch that contradicts the expectation visibly overwrites the
	// assumed value.
	fetchedOK := make(map[TypeTag]bool, len(c.registrations))
	for _, reg := range c.registrations {
		if !failed[reg.Tag] {
			fetchedOK[reg.Tag] = true
		}
	}
	for _, id := range c.optimistic.ConfirmTypes(fetchedOK) {
		if snap, ok := current[id]; ok {
			if err := c.dispatcher.PublishState(snap, snap.State(), started); err != nil {
				c.logger.Warn("confirmed state publish failed", "resource_id", id, "error", err)
			}
		}
	}
	for _, id := range c.optimistic.Expire() {
		if snap, ok := current[id]; ok {
			if err := c.dispatcher.PublishState(snap, snap.State(), started); err != nil {
				c.logger.Warn("revert state publish failed", "resource_id", id, "error", err)
			}
		}
		c.logger.Info("optimistic expectation expired", "resource_id", id)
	}
	c.scheduler.SetAwaitingConfirmation(c.optimistic.Pending())

	cycleState := StateReady
	if len(failed) > 0 {
		cycleState = StateDegraded
	}
	c.setState(cycleState)

	c.mu.Lock()
	c.prev = current
	for tag, snaps := range currentByType {
		if !failed[tag] {
			c.prevByType[tag] = snaps
		}
	}
	c.stats.cycles++
	c.stats.events += uint64(dispatched)
	c.stats.lastCycleAt = started
	c.stats.lastCycleState = cycleState
	c.mu.Unlock()

	c.lifecycle.MarkBaseline()

	duration := c.now().Sub(started)
	if c.cycles != nil {
		c.cycles.RecordCycle(string(cycleState), dispatched, duration)
	}
	c.logger.Info("cycle complete",
		"trigger", string(trigger),
		"state", string(cycleState),
		"resources", len(current),
		"events", dispatched,
		"failed_types", len(failed),
		"duration_ms", duration.Milliseconds())

	c.setState(StateIdle)
	return nil
}

// fetchAll retrieves every registered collection. Transient failures fall
// back to the previous snapshot of that type and mark it failed; auth and
// throttle failures abort the cycle.
func (c *Coordinator) fetchAll(ctx context.Context) (map[TypeTag][]Snapshot, map[TypeTag]bool, error) {
	currentByType := make(map[TypeTag][]Snapshot, len(c.registrations))
	failed := make(map[TypeTag]bool)

	for _, reg := range c.registrations {
		c.mu.RLock()
		skip := c.unsupported[reg.Tag]
		c.mu.RUnlock()
		if skip {
			currentByType[reg.Tag] = nil
			continue
		}

		raws, err := c.fetcher.Fetch(ctx, reg.Path)
		switch {
		case err == nil:
			currentByType[reg.Tag] = c.normalize(reg, raws)

		case errors.Is(err, ErrUnsupported):
			c.mu.Lock()
			c.unsupported[reg.Tag] = true
			c.mu.Unlock()
			currentByType[reg.Tag] = nil
			c.logger.Info("resource type not supported by controller",
				"type", string(reg.Tag), "path", reg.Path)

		case errors.Is(err, ErrAuthFailed):
			c.setState(StateAuthFailed)
			c.logger.Error("controller authentication failed", "type", string(reg.Tag))
			if c.reauth != nil {
				c.reauth.RequestReauth(ctx)
			}
			return nil, nil, fmt.Errorf("fetch %s: %w", reg.Path, err)

		default:
			var throttled *ThrottledError
			if errors.As(err, &throttled) {
				c.scheduler.Reschedule(throttled.RetryAfter)
				return nil, nil, fmt.Errorf("fetch %s: %w", reg.Path, err)
			}

			// Transient: reuse the previous snapshot so absence is not
			// mistaken for deletion.
			failed[reg.Tag] = true
			c.mu.RLock()
			currentByType[reg.Tag] = c.prevByType[reg.Tag]
			c.mu.RUnlock()
			c.logger.Warn("fetch failed, previous snapshot preserved",
				"type", string(reg.Tag), "error", err)
		}
	}

	return currentByType, failed, nil
}

// normalize converts raw records into snapshots, dropping malformed ones,
// and appends companion children derived from each parent.
func (c *Coordinator) normalize(reg TypeRegistration, raws []map[string]any) []Snapshot {
	snaps := make([]Snapshot, 0, len(raws))
	for _, raw := range raws {
		snap, err := reg.Normalize(raw)
		if err != nil {
			c.logger.Warn("malformed record dropped",
				"type", string(reg.Tag), "error", err)
			continue
		}
		snaps = append(snaps, snap)
		if reg.Children != nil {
			snaps = append(snaps, reg.Children(snap)...)
		}
	}
	return snaps
}

// flatten builds the combined id-keyed snapshot map, rejecting duplicate
// ids across types.
func (c *Coordinator) flatten(currentByType map[TypeTag][]Snapshot) (map[string]Snapshot, error) {
	current := make(map[string]Snapshot)
	for _, snaps := range currentByType {
		for _, snap := range snaps {
			if existing, ok := current[snap.ID]; ok {
				return nil, fmt.Errorf("mirror: duplicate resource id %q across types %s and %s",
					snap.ID, existing.Type, snap.Type)
			}
			current[snap.ID] = snap
		}
	}
	return current, nil
}

// publish dispatches events and refreshes retained state topics for every
// changed resource. Per-event failures are logged and skipped.
func (c *Coordinator) publish(events []ChangeEvent, current map[string]Snapshot, now time.Time) int {
	dispatched := 0
	for _, ev := range events {
		if err := c.dispatcher.Dispatch(ev); err != nil {
			c.logger.Warn("event dispatch failed",
				"resource_id", ev.ResourceID, "action", string(ev.Action), "error", err)
			continue
		}
		dispatched++

		if ev.Action == ActionDeleted {
			if err := c.dispatcher.ClearState(ev.Type, ev.ResourceID); err != nil {
				c.logger.Warn("state clear failed", "resource_id", ev.ResourceID, "error", err)
			}
			continue
		}
		snap, ok := current[ev.ResourceID]
		if !ok {
			continue
		}
		state := c.optimistic.Overlay(snap.ID, snap.State())
		if err := c.dispatcher.PublishState(snap, state, now); err != nil {
			c.logger.Warn("state publish failed", "resource_id", snap.ID, "error", err)
		}
	}
	return dispatched
}

func (c *Coordinator) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}
