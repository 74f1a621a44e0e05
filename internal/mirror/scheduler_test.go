package mirror

import (
	"sort"
	"testing"
	"time"
)

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BaseInterval:     180 * time.Second,
		ActiveInterval:   30 * time.Second,
		RealtimeInterval: 5 * time.Second,
		ActivityTimeout:  300 * time.Second,
		DebounceWindow:   20 * time.Millisecond,
	}
}

func TestSchedulerDebounceCoalescesBurst(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), nil)

	for i := 0; i < 5; i++ {
		s.RegisterActivity("r-1")
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case trigger := <-s.Requests():
		if trigger != TriggerActivity {
			t.Errorf("expected activity trigger, got %s", trigger)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("debounced cycle request never arrived")
	}

	// The burst must have collapsed into exactly one request.
	select {
	case trigger := <-s.Requests():
		t.Fatalf("unexpected second request: %s", trigger)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerDirtySurvivesCoalescing(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), nil)

	s.RegisterActivity("r-1")
	s.RegisterActivity("r-2")
	s.RegisterActivity("r-1")

	ids := s.TakeDirty()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "r-1" || ids[1] != "r-2" {
		t.Fatalf("expected dirty set {r-1, r-2}, got %v", ids)
	}

	if again := s.TakeDirty(); again != nil {
		t.Fatalf("dirty set should be empty after take, got %v", again)
	}
}

func TestSchedulerQueueNeverExceedsOne(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), nil)

	s.enqueue(TriggerInterval)
	s.enqueue(TriggerActivity)
	s.enqueue(TriggerInterval)

	<-s.Requests()
	select {
	case trigger := <-s.Requests():
		t.Fatalf("requests must coalesce to one, got extra %s", trigger)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSchedulerCurrentIntervalTiers(t *testing.T) {
	cfg := testSchedulerConfig()
	s := NewScheduler(cfg, nil)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	if got := s.CurrentInterval(); got != cfg.BaseInterval {
		t.Errorf("no activity yet: expected base interval, got %v", got)
	}

	s.RegisterActivity("r-1")
	if got := s.CurrentInterval(); got != cfg.ActiveInterval {
		t.Errorf("fresh activity: expected active interval, got %v", got)
	}

	s.SetAwaitingConfirmation(true)
	if got := s.CurrentInterval(); got != cfg.RealtimeInterval {
		t.Errorf("awaiting confirmation: expected realtime interval, got %v", got)
	}

	s.SetAwaitingConfirmation(false)
	now = base.Add(cfg.ActivityTimeout + time.Second)
	if got := s.CurrentInterval(); got != cfg.BaseInterval {
		t.Errorf("activity timed out: expected base interval, got %v", got)
	}
}

func TestSchedulerRescheduleDeliversRetry(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), nil)

	s.Reschedule(10 * time.Millisecond)

	select {
	case trigger := <-s.Requests():
		if trigger != TriggerRetry {
			t.Errorf("expected retry trigger, got %s", trigger)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("rescheduled request never arrived")
	}
}

func TestSchedulerActivityAfterStopIsIgnored(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), nil)
	s.stop()

	s.RegisterActivity("r-1")

	if ids := s.TakeDirty(); ids != nil {
		t.Fatalf("stopped scheduler must not accumulate dirty ids, got %v", ids)
	}
	select {
	case trigger := <-s.Requests():
		t.Fatalf("stopped scheduler delivered request: %s", trigger)
	case <-time.After(50 * time.Millisecond):
	}
}
