// Package config loads and validates Gray Gate configuration.
//
// Configuration comes from a single YAML file with three layers of
// precedence: hardcoded defaults, file values, then GRAYGATE_* environment
// variable overrides (used for secrets such as the controller API key and
// MQTT credentials so they stay out of the file).
//
// The mirror section drives the reconciliation scheduler: three polling
// tiers (base, active, realtime), the activity timeout that steps the tiers
// down, the debounce window for coalescing local mutations, and the
// optimistic-state expiry. All are integer seconds in YAML with Duration
// getters for callers.
package config
