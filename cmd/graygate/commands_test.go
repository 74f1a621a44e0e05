package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/gray-gate/internal/catalog"
	"github.com/nerrad567/gray-gate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-gate/internal/mirror"
)

type appliedPatch struct {
	path  string
	id    string
	patch map[string]any
}

type fakeApplier struct {
	applied []appliedPatch
	err     error
}

func (f *fakeApplier) Apply(_ context.Context, path, id string, patch map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, appliedPatch{path, id, patch})
	return nil
}

type notedMutation struct {
	id       string
	tag      mirror.TypeTag
	expected map[string]any
}

type fakeNoter struct {
	noted []notedMutation
}

func (f *fakeNoter) NoteLocalMutation(id string, tag mirror.TypeTag, expected map[string]any) {
	f.noted = append(f.noted, notedMutation{id, tag, expected})
}

func newTestRouter() (*commandRouter, *fakeApplier, *fakeNoter) {
	applier := &fakeApplier{}
	noter := &fakeNoter{}
	router := newCommandRouter(catalog.Default(), applier, noter, logging.Default())
	return router, applier, noter
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return data
}

func TestCommandTogglesResource(t *testing.T) {
	router, applier, noter := newTestRouter()

	err := router.Handle("graygate/command/port_forward/pf-1",
		mustJSON(t, map[string]any{"enabled": false}))
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(applier.applied) != 1 {
		t.Fatalf("expected 1 apply, got %d", len(applier.applied))
	}
	got := applier.applied[0]
	if got.path != "portforward" || got.id != "pf-1" {
		t.Errorf("unexpected apply target: %s/%s", got.path, got.id)
	}
	if got.patch["enabled"] != false {
		t.Errorf("unexpected patch: %v", got.patch)
	}

	if len(noter.noted) != 1 || noter.noted[0].id != "pf-1" || noter.noted[0].tag != "port_forward" {
		t.Fatalf("mutation not noted: %v", noter.noted)
	}
}

func TestCommandFiltersUnknownFields(t *testing.T) {
	router, applier, _ := newTestRouter()

	err := router.Handle("graygate/command/port_forward/pf-1",
		mustJSON(t, map[string]any{"enabled": true, "rx_bytes": 99, "_id": "evil"}))
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	patch := applier.applied[0].patch
	if len(patch) != 1 || patch["enabled"] != true {
		t.Errorf("patch should carry only allowed fields, got %v", patch)
	}
}

func TestCommandWithNoApplicableFieldsRejected(t *testing.T) {
	router, applier, noter := newTestRouter()

	err := router.Handle("graygate/command/port_forward/pf-1",
		mustJSON(t, map[string]any{"bogus": 1}))
	if err == nil {
		t.Fatal("expected error for empty patch")
	}
	if len(applier.applied) != 0 || len(noter.noted) != 0 {
		t.Error("nothing should be applied or noted")
	}
}

func TestChildCommandPatchesParent(t *testing.T) {
	router, applier, noter := newTestRouter()

	err := router.Handle("graygate/command/traffic_route_kill_switch/tr-1_kill_switch",
		mustJSON(t, map[string]any{"enabled": false}))
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	got := applier.applied[0]
	if got.path != "trafficroute" || got.id != "tr-1" {
		t.Errorf("child command must patch the parent record, got %s/%s", got.path, got.id)
	}
	if got.patch["kill_switch"] != false {
		t.Errorf("unexpected parent patch: %v", got.patch)
	}

	noted := noter.noted[0]
	if noted.id != "tr-1_kill_switch" || noted.expected["enabled"] != false {
		t.Errorf("optimistic note should target the child, got %v", noted)
	}
}

func TestChildCommandNestedFlagPath(t *testing.T) {
	specs := []catalog.Spec{{
		Tag:          "vpn_tunnel",
		Path:         "vpntunnel",
		Label:        "VPN Tunnel",
		EnabledField: "enabled",
		Children: []catalog.ChildSpec{{
			Suffix: "failover",
			Tag:    "vpn_tunnel_failover",
			Path:   []string{"failover", "enabled"},
			Label:  "Failover",
		}},
	}}
	applier := &fakeApplier{}
	noter := &fakeNoter{}
	router := newCommandRouter(specs, applier, noter, logging.Default())

	err := router.Handle("graygate/command/vpn_tunnel_failover/vt-1_failover",
		mustJSON(t, map[string]any{"enabled": true}))
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	got := applier.applied[0]
	if got.path != "vpntunnel" || got.id != "vt-1" {
		t.Fatalf("unexpected apply target: %s/%s", got.path, got.id)
	}
	nested, ok := got.patch["failover"].(map[string]any)
	if !ok || nested["enabled"] != true {
		t.Errorf("patch should mirror the flag's nesting, got %v", got.patch)
	}
}

func TestChildCommandRequiresEnabledFlag(t *testing.T) {
	router, applier, _ := newTestRouter()

	err := router.Handle("graygate/command/traffic_route_kill_switch/tr-1_kill_switch",
		mustJSON(t, map[string]any{"interface": "wan2"}))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(applier.applied) != 0 {
		t.Error("nothing should be applied")
	}
}

func TestCommandUnknownType(t *testing.T) {
	router, _, _ := newTestRouter()

	err := router.Handle("graygate/command/nonsense/x-1",
		mustJSON(t, map[string]any{"enabled": true}))
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestCommandMalformedTopic(t *testing.T) {
	router, _, _ := newTestRouter()

	for _, topic := range []string{
		"graygate/command/port_forward",
		"graygate/event/port_forward/pf-1",
		"graygate/command//pf-1",
	} {
		if err := router.Handle(topic, mustJSON(t, map[string]any{"enabled": true})); err == nil {
			t.Errorf("expected error for topic %q", topic)
		}
	}
}

func TestCommandApplierFailurePropagates(t *testing.T) {
	router, applier, noter := newTestRouter()
	applier.err = errors.New("controller unreachable")

	err := router.Handle("graygate/command/port_forward/pf-1",
		mustJSON(t, map[string]any{"enabled": true}))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(noter.noted) != 0 {
		t.Error("failed apply must not note an optimistic mutation")
	}
}

func TestParseCommandTopic(t *testing.T) {
	tag, id, err := parseCommandTopic("graygate/command/wlan/wl-guest")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if tag != "wlan" || id != "wl-guest" {
		t.Errorf("unexpected parse result: %s/%s", tag, id)
	}
}
