package mirror

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventSink publishes messages to the automation bus. Satisfied by the
// infrastructure MQTT client.
type EventSink interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// TopicScheme builds the bus topics events and state are published on.
type TopicScheme interface {
	Event(typeTag, id string) string
	State(typeTag, id string) string
}

// HistoryRecorder mirrors dispatched events into a time-series store.
// Optional and best-effort.
type HistoryRecorder interface {
	RecordChange(typeTag, action, resourceID, displayName string, ts time.Time)
}

// Dispatcher delivers change events to automation consumers.
//
// Each event is published exactly once, as one message on its resource's
// event topic. State topics are retained so late subscribers see the
// current state without waiting for the next change.
type Dispatcher struct {
	sink    EventSink
	topics  TopicScheme
	history HistoryRecorder
	qos     byte
	logger  Logger
}

// NewDispatcher creates a dispatcher publishing through the given sink.
func NewDispatcher(sink EventSink, topics TopicScheme, qos byte, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		sink:   sink,
		topics: topics,
		qos:    qos,
		logger: logger,
	}
}

// SetHistory attaches an optional history recorder.
func (d *Dispatcher) SetHistory(h HistoryRecorder) {
	d.history = h
}

// Dispatch publishes one change event.
func (d *Dispatcher) Dispatch(ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	topic := d.topics.Event(string(ev.Type), ev.ResourceID)
	if err := d.sink.Publish(topic, payload, d.qos, false); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}

	if d.history != nil {
		d.history.RecordChange(string(ev.Type), string(ev.Action), ev.ResourceID, ev.DisplayName, ev.Timestamp)
	}

	d.logger.Debug("change event dispatched",
		"resource_id", ev.ResourceID, "type", string(ev.Type), "action", string(ev.Action))
	return nil
}

type statePayload struct {
	ID        string         `json:"id"`
	Type      TypeTag        `json:"type"`
	Name      string         `json:"name"`
	State     map[string]any `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}

// PublishState publishes the retained state topic for a resource. The
// state map may already carry an optimistic overlay.
func (d *Dispatcher) PublishState(snap Snapshot, state map[string]any, now time.Time) error {
	payload, err := json.Marshal(statePayload{
		ID:        snap.ID,
		Type:      snap.Type,
		Name:      snap.Name,
		State:     state,
		Timestamp: now,
	})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	topic := d.topics.State(string(snap.Type), snap.ID)
	if err := d.sink.Publish(topic, payload, d.qos, true); err != nil {
		return fmt.Errorf("publish state: %w", err)
	}
	return nil
}

// ClearState removes the retained state topic for a deleted resource by
// publishing an empty retained message.
func (d *Dispatcher) ClearState(typeTag TypeTag, id string) error {
	topic := d.topics.State(string(typeTag), id)
	if err := d.sink.Publish(topic, []byte{}, d.qos, true); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}
