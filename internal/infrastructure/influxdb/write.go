package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordChange writes one change-event point to InfluxDB.
//
// The write is non-blocking; points are batched and flushed asynchronously.
// Dropped writes while disconnected are intentional — the history recorder
// is an optional sink and must never block or fail a reconciliation cycle.
//
// Parameters:
//   - typeTag: Resource type (e.g., "port_forward")
//   - action: Change classification (created, enabled, disabled, modified, deleted)
//   - resourceID: The mirrored resource identifier
//   - displayName: Human-readable resource name
//   - ts: Event timestamp
func (c *Client) RecordChange(typeTag, action, resourceID, displayName string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"change_events",
		map[string]string{
			"type":   typeTag,
			"action": action,
		},
		map[string]interface{}{
			"resource_id":  resourceID,
			"display_name": displayName,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// RecordCycle writes one reconciliation-cycle summary point.
//
// Used to chart cycle durations and event volume over time.
func (c *Client) RecordCycle(state string, events int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"reconcile_cycles",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"events":      events,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
