package mirror

import (
	"testing"
	"time"
)

func TestOptimisticOverlayMergesExpected(t *testing.T) {
	o := NewOptimisticStore(time.Minute)
	o.Expect("r-1", "traffic_rule", map[string]any{"enabled": false})

	state := o.Overlay("r-1", map[string]any{"enabled": true, "action": "block"})

	if state["enabled"] != false {
		t.Error("expected value should overlay confirmed state")
	}
	if state["action"] != "block" {
		t.Error("untouched confirmed fields should survive the overlay")
	}
}

func TestOptimisticOverlayWithoutEntryReturnsStateUnchanged(t *testing.T) {
	o := NewOptimisticStore(time.Minute)
	state := map[string]any{"enabled": true}

	if got := o.Overlay("r-1", state); got["enabled"] != true {
		t.Errorf("overlay without entry should pass state through, got %v", got)
	}
}

func TestOptimisticConfirmTypesClearsFetchedTypes(t *testing.T) {
	o := NewOptimisticStore(time.Minute)
	o.Expect("r-1", "traffic_rule", map[string]any{"enabled": false})
	o.Expect("pf-1", "port_forward", map[string]any{"enabled": true})

	confirmed := o.ConfirmTypes(map[TypeTag]bool{"traffic_rule": true})

	if len(confirmed) != 1 || confirmed[0] != "r-1" {
		t.Fatalf("expected r-1 confirmed, got %v", confirmed)
	}
	if !o.Pending() {
		t.Fatal("port_forward entry should still be pending")
	}
	state := o.Overlay("r-1", map[string]any{"enabled": true})
	if state["enabled"] != true {
		t.Error("confirmed entry must no longer overlay state")
	}
}

func TestOptimisticExpiryReverts(t *testing.T) {
	o := NewOptimisticStore(30 * time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	o.now = func() time.Time { return now }

	o.Expect("r-1", "traffic_rule", map[string]any{"enabled": false})

	now = base.Add(10 * time.Second)
	if expired := o.Expire(); expired != nil {
		t.Fatalf("nothing should expire before the deadline, got %v", expired)
	}

	now = base.Add(31 * time.Second)
	expired := o.Expire()
	if len(expired) != 1 || expired[0] != "r-1" {
		t.Fatalf("expected r-1 to expire, got %v", expired)
	}
	if o.Pending() {
		t.Error("store should be empty after expiry")
	}
}

func TestOptimisticSecondExpectReplacesEntry(t *testing.T) {
	o := NewOptimisticStore(time.Minute)
	o.Expect("r-1", "traffic_rule", map[string]any{"enabled": false})
	o.Expect("r-1", "traffic_rule", map[string]any{"enabled": true})

	state := o.Overlay("r-1", map[string]any{})
	if state["enabled"] != true {
		t.Errorf("latest expectation should win, got %v", state["enabled"])
	}
}

func TestOptimisticExpectCopiesInput(t *testing.T) {
	o := NewOptimisticStore(time.Minute)
	expected := map[string]any{"enabled": false}
	o.Expect("r-1", "traffic_rule", expected)

	expected["enabled"] = true

	state := o.Overlay("r-1", nil)
	if state["enabled"] != false {
		t.Error("store must hold an independent copy of the expected values")
	}
}
