// Package mirror implements the reconciliation engine at the heart of
// Gray Gate: a local, continuously refreshed mirror of the remote network
// controller's configuration objects.
//
// The engine polls the controller on an adaptive three-tier cadence
// (Scheduler), snapshots every registered resource type, classifies
// transitions between consecutive snapshots (Detect), keeps local
// representations in lockstep with remote existence (Lifecycle), publishes
// change events and retained state to the automation bus (Dispatcher), and
// bridges the confirmation gap after local mutations with expiring
// optimistic state (OptimisticStore). The Coordinator sequences all of it:
// one cycle at a time, remote data always authoritative.
//
// Resource types are plugged in through TypeRegistration values; the
// engine itself knows nothing about any concrete type.
package mirror
