// Package influxdb provides the optional change-event history recorder.
//
// Every dispatched change event can be mirrored as a time-series point
// (measurement "change_events") alongside per-cycle summaries
// ("reconcile_cycles"). Writes are batched and non-blocking: history is a
// best-effort sink and never affects the reconciliation loop.
package influxdb
