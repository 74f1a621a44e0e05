package registry

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the representations table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Create representations table matching the schema
	schema := `
		CREATE TABLE representations (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			parent_id TEXT,
			domain TEXT NOT NULL,
			platform TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_representations_type ON representations(type);
		CREATE INDEX idx_representations_domain ON representations(domain);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testRepresentation creates a representation for testing.
func testRepresentation(id, name string) *Representation {
	return &Representation{
		ID:       id,
		Type:     "port_forward",
		Name:     name,
		Domain:   "switch",
		Platform: Platform,
		State:    map[string]any{"enabled": true, "dst_port": "22"},
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	rep := testRepresentation("pf-1", "ssh")
	if err := repo.Create(ctx, rep); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "pf-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "ssh" || got.Type != "port_forward" || got.Domain != "switch" {
		t.Errorf("representation mismatch: %+v", got)
	}
	if got.State["enabled"] != true || got.State["dst_port"] != "22" {
		t.Errorf("state mismatch: %v", got.State)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, testRepresentation("pf-1", "ssh again")); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestRepositoryUpdate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	rep := testRepresentation("pf-1", "ssh")
	if err := repo.Create(ctx, rep); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rep.Name = "ssh renamed"
	if err := repo.Update(ctx, rep); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "pf-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "ssh renamed" {
		t.Errorf("update not persisted: %s", got.Name)
	}
}

func TestRepositoryUpdateMissing(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.Update(context.Background(), testRepresentation("nope", "x"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Delete(ctx, "pf-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, "pf-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted representation still present: %v", err)
	}
	if err := repo.Delete(ctx, "pf-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete should return ErrNotFound, got %v", err)
	}
}

func TestRepositoryUpdateState(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.UpdateState(ctx, "pf-1", map[string]any{"enabled": false}); err != nil {
		t.Fatalf("update state failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "pf-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.State["enabled"] != false {
		t.Errorf("state not updated: %v", got.State)
	}
}

func TestRepositoryListByType(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testRepresentation("pf-1", "ssh")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	other := testRepresentation("fw-1", "block iot")
	other.Type = "firewall_policy"
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	reps, err := repo.ListByType(ctx, "port_forward")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(reps) != 1 || reps[0].ID != "pf-1" {
		t.Errorf("unexpected list result: %v", reps)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list all failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 representations, got %d", len(all))
	}
}

func TestRepositoryParentID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	parent := "tr-1"
	child := testRepresentation("tr-1_kill_switch", "vpn Kill Switch")
	child.Type = "traffic_route_kill_switch"
	child.ParentID = &parent
	if err := repo.Create(ctx, child); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "tr-1_kill_switch")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ParentID == nil || *got.ParentID != "tr-1" {
		t.Errorf("parent id not persisted: %v", got.ParentID)
	}
}
