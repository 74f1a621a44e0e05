package mirror

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type publishedMessage struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeSink struct {
	messages []publishedMessage
	err      error
}

func (f *fakeSink) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, publishedMessage{topic, payload, retained})
	return nil
}

type fakeTopics struct{}

func (fakeTopics) Event(typeTag, id string) string { return "test/event/" + typeTag + "/" + id }
func (fakeTopics) State(typeTag, id string) string { return "test/state/" + typeTag + "/" + id }

type fakeHistory struct {
	records []string
}

func (f *fakeHistory) RecordChange(typeTag, action, resourceID, _ string, _ time.Time) {
	f.records = append(f.records, typeTag+"/"+action+"/"+resourceID)
}

func TestDispatcherPublishesEvent(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, fakeTopics{}, 1, nil)

	ev := ChangeEvent{
		ID:         "ev-1",
		ResourceID: "pf-1",
		Type:       "port_forward",
		Action:     ActionEnabled,
		Timestamp:  time.Now(),
		Source:     "interval",
	}
	if err := d.Dispatch(ev); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if len(sink.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sink.messages))
	}
	msg := sink.messages[0]
	if msg.topic != "test/event/port_forward/pf-1" {
		t.Errorf("unexpected topic: %s", msg.topic)
	}
	if msg.retained {
		t.Error("event messages must not be retained")
	}

	var decoded ChangeEvent
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if decoded.Action != ActionEnabled || decoded.ResourceID != "pf-1" {
		t.Errorf("payload mismatch: %+v", decoded)
	}
}

func TestDispatcherRecordsHistory(t *testing.T) {
	sink := &fakeSink{}
	history := &fakeHistory{}
	d := NewDispatcher(sink, fakeTopics{}, 1, nil)
	d.SetHistory(history)

	ev := ChangeEvent{ResourceID: "pf-1", Type: "port_forward", Action: ActionDeleted}
	if err := d.Dispatch(ev); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if len(history.records) != 1 || history.records[0] != "port_forward/deleted/pf-1" {
		t.Fatalf("unexpected history records: %v", history.records)
	}
}

func TestDispatcherPublishFailureSkipsHistory(t *testing.T) {
	sink := &fakeSink{err: errors.New("broker gone")}
	history := &fakeHistory{}
	d := NewDispatcher(sink, fakeTopics{}, 1, nil)
	d.SetHistory(history)

	if err := d.Dispatch(ChangeEvent{ResourceID: "pf-1"}); err == nil {
		t.Fatal("expected error from failed publish")
	}
	if len(history.records) != 0 {
		t.Error("failed dispatch must not record history")
	}
}

func TestDispatcherPublishStateRetained(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, fakeTopics{}, 1, nil)

	s := snap("pf-1", "port_forward", true, map[string]any{"dst_port": "22"})
	if err := d.PublishState(s, s.State(), time.Now()); err != nil {
		t.Fatalf("publish state failed: %v", err)
	}

	if len(sink.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sink.messages))
	}
	msg := sink.messages[0]
	if !msg.retained {
		t.Error("state messages must be retained")
	}
	if msg.topic != "test/state/port_forward/pf-1" {
		t.Errorf("unexpected topic: %s", msg.topic)
	}

	var decoded statePayload
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if decoded.State["enabled"] != true || decoded.State["dst_port"] != "22" {
		t.Errorf("state payload mismatch: %+v", decoded.State)
	}
}

func TestDispatcherClearStatePublishesEmptyRetained(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, fakeTopics{}, 1, nil)

	if err := d.ClearState("port_forward", "pf-1"); err != nil {
		t.Fatalf("clear state failed: %v", err)
	}

	msg := sink.messages[0]
	if !msg.retained || len(msg.payload) != 0 {
		t.Errorf("clear must publish an empty retained message, got retained=%v len=%d",
			msg.retained, len(msg.payload))
	}
}
