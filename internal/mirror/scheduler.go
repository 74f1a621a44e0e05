package mirror

import (
	"context"
	"sync"
	"time"
)

// CycleTrigger names why a reconciliation cycle was requested.
type CycleTrigger string

// Cycle trigger reasons.
const (
	// TriggerInterval is the steady poll timer firing.
	TriggerInterval CycleTrigger = "interval"

	// TriggerActivity is a debounced burst of local activity settling.
	TriggerActivity CycleTrigger = "activity"

	// TriggerRetry is a rescheduled attempt after the controller throttled
	// a previous cycle.
	TriggerRetry CycleTrigger = "retry"
)

// SchedulerConfig holds the poll cadence tiers and debounce window.
type SchedulerConfig struct {
	// BaseInterval is the steady-state cadence with no recent activity.
	BaseInterval time.Duration

	// ActiveInterval is the cadence while local activity is recent.
	ActiveInterval time.Duration

	// RealtimeInterval is the cadence while a local mutation awaits
	// remote confirmation.
	RealtimeInterval time.Duration

	// ActivityTimeout is how long after the last activity the scheduler
	// stays off the base tier.
	ActivityTimeout time.Duration

	// DebounceWindow coalesces bursts of activity into one cycle request.
	DebounceWindow time.Duration
}

// Scheduler decides when reconciliation cycles run.
//
// Cycle requests are delivered on a buffered channel of capacity one:
// while a cycle is in flight, further triggers collapse into at most one
// queued request instead of running concurrently. Dirty resource ids
// survive coalescing — they accumulate until the coordinator collects
// them at the start of the next cycle, so no activity is ever lost no
// matter how many debounce timers were cancelled on the way.
type Scheduler struct {
	cfg    SchedulerConfig
	logger Logger

	mu           sync.Mutex
	lastActivity time.Time
	dirty        map[string]struct{}
	debounce     *time.Timer
	awaiting     bool
	stopped      bool

	requests chan CycleTrigger

	now func() time.Time
}

// NewScheduler creates a scheduler with the given cadence configuration.
func NewScheduler(cfg SchedulerConfig, logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		cfg:      cfg,
		logger:   logger,
		dirty:    make(map[string]struct{}),
		requests: make(chan CycleTrigger, 1),
		now:      time.Now,
	}
}

// Requests returns the channel on which cycle requests are delivered.
// The coordinator is the sole consumer.
func (s *Scheduler) Requests() <-chan CycleTrigger {
	return s.requests
}

// RegisterActivity records local activity against a resource id and
// (re)arms the debounce timer. N calls within one window produce a single
// activity-triggered cycle; the id joins the dirty set immediately and
// stays there until collected.
func (s *Scheduler) RegisterActivity(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.dirty[id] = struct{}{}
	s.lastActivity = s.now()

	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.cfg.DebounceWindow, func() {
		s.enqueue(TriggerActivity)
	})

	s.logger.Debug("activity registered", "resource_id", id, "dirty", len(s.dirty))
}

// TakeDirty returns the accumulated dirty resource ids and clears the set.
// Called by the coordinator at the start of each cycle.
func (s *Scheduler) TakeDirty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.dirty) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	s.dirty = make(map[string]struct{})
	return ids
}

// SetAwaitingConfirmation marks whether any local mutation is still
// unconfirmed by a fetch. While true and activity is fresh, the scheduler
// polls on the realtime tier.
func (s *Scheduler) SetAwaitingConfirmation(awaiting bool) {
	s.mu.Lock()
	s.awaiting = awaiting
	s.mu.Unlock()
}

// CurrentInterval returns the poll interval for the current tier: realtime
// while an unconfirmed mutation is pending and activity is fresh, active
// while activity is fresh otherwise, base once the activity timeout has
// elapsed.
func (s *Scheduler) CurrentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastActivity.IsZero() || s.now().Sub(s.lastActivity) > s.cfg.ActivityTimeout {
		return s.cfg.BaseInterval
	}
	if s.awaiting {
		return s.cfg.RealtimeInterval
	}
	return s.cfg.ActiveInterval
}

// Reschedule requests a retry cycle after the given delay. Used when the
// controller throttled a cycle and named the earliest permitted retry.
func (s *Scheduler) Reschedule(after time.Duration) {
	s.logger.Info("cycle rescheduled", "after", after.String())
	time.AfterFunc(after, func() {
		s.enqueue(TriggerRetry)
	})
}

// enqueue delivers a cycle request, collapsing into an already-queued one.
func (s *Scheduler) enqueue(trigger CycleTrigger) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	select {
	case s.requests <- trigger:
	default:
		// A request is already queued; the pending cycle covers this one.
	}
}

// Run drives the steady poll timer until the context is cancelled. The
// interval is re-evaluated after every firing, so tier changes take effect
// at the next arm.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(s.CurrentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stop()
			return ctx.Err()
		case <-timer.C:
			s.enqueue(TriggerInterval)
			timer.Reset(s.CurrentInterval())
		}
	}
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.debounce != nil {
		s.debounce.Stop()
	}
}
