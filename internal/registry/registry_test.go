package registry

import (
	"context"
	"errors"
	"testing"
)

func setupTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(NewSQLiteRepository(setupTestDB(t)))
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := setupTestRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	found, err := reg.Lookup(ctx, "switch", Platform, "pf-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !found {
		t.Error("registered representation should be found")
	}

	found, err = reg.Lookup(ctx, "switch", Platform, "pf-2")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found {
		t.Error("unregistered id should not be found")
	}

	// An id held under another domain or platform is still an adoption
	// hit; reporting absence would send discovery into the unique
	// constraint every cycle.
	if found, _ := reg.Lookup(ctx, "sensor", Platform, "pf-1"); !found {
		t.Error("existing id under another domain should still be adopted")
	}
	if found, _ := reg.Lookup(ctx, "switch", "other", "pf-1"); !found {
		t.Error("existing id under another platform should still be adopted")
	}
}

func TestRegistryLookupAdoptsConflictingRecordFromDisk(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := NewRegistry(NewSQLiteRepository(db))
	rep := testRepresentation("pf-1", "ssh")
	rep.Domain = "sensor"
	rep.Platform = "legacy"
	if err := first.Register(ctx, rep); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Cold cache forces the repository path.
	second := NewRegistry(NewSQLiteRepository(db))
	found, err := second.Lookup(ctx, "switch", Platform, "pf-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !found {
		t.Error("conflicting record on disk should be adopted, not re-registered")
	}
}

func TestRegistryLookupSurvivesRestart(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := NewRegistry(NewSQLiteRepository(db))
	if err := first.Register(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Fresh registry over the same database simulates a restart.
	second := NewRegistry(NewSQLiteRepository(db))
	if err := second.RefreshCache(ctx); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	found, err := second.Lookup(ctx, "switch", Platform, "pf-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !found {
		t.Error("representation should be adoptable after restart")
	}
	if second.Count() != 1 {
		t.Errorf("expected 1 cached representation, got %d", second.Count())
	}
}

func TestRegistryRegisterValidation(t *testing.T) {
	reg := setupTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Representation)
	}{
		{"missing id", func(r *Representation) { r.ID = "" }},
		{"missing type", func(r *Representation) { r.Type = "" }},
		{"missing domain", func(r *Representation) { r.Domain = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := testRepresentation("pf-1", "ssh")
			tt.mutate(rep)
			if err := reg.Register(ctx, rep); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestRegistryRegisterDefaultsPlatform(t *testing.T) {
	reg := setupTestRegistry(t)
	ctx := context.Background()

	rep := testRepresentation("pf-1", "ssh")
	rep.Platform = ""
	if err := reg.Register(ctx, rep); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if rep.Platform != Platform {
		t.Errorf("platform should default to %q, got %q", Platform, rep.Platform)
	}
}

func TestRegistryDeregister(t *testing.T) {
	reg := setupTestRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := reg.Deregister(ctx, "pf-1"); err != nil {
		t.Fatalf("deregister failed: %v", err)
	}

	found, err := reg.Lookup(ctx, "switch", Platform, "pf-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found {
		t.Error("deregistered representation should not be found")
	}
	if err := reg.Deregister(ctx, "pf-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistrySetState(t *testing.T) {
	reg := setupTestRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := reg.SetState(ctx, "pf-1", map[string]any{"enabled": false}); err != nil {
		t.Fatalf("set state failed: %v", err)
	}

	got, err := reg.Get(ctx, "pf-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.State["enabled"] != false {
		t.Errorf("state not updated: %v", got.State)
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	reg := setupTestRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	got, err := reg.Get(ctx, "pf-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	got.State["enabled"] = false

	again, err := reg.Get(ctx, "pf-1")
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if again.State["enabled"] != true {
		t.Error("mutating a returned representation must not affect the cache")
	}
}

func TestRegistryStats(t *testing.T) {
	reg := setupTestRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	other := testRepresentation("fw-1", "block iot")
	other.Type = "firewall_policy"
	if err := reg.Register(ctx, other); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	stats := reg.GetStats()
	if stats.Total != 2 {
		t.Errorf("expected 2 total, got %d", stats.Total)
	}
	if stats.ByType["port_forward"] != 1 || stats.ByType["firewall_policy"] != 1 {
		t.Errorf("unexpected type counts: %v", stats.ByType)
	}
	if stats.ByDomain["switch"] != 2 {
		t.Errorf("unexpected domain counts: %v", stats.ByDomain)
	}
}
