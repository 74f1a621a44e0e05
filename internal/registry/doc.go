// Package registry persists the local representations of mirrored remote
// resources.
//
// A representation is what downstream consumers address when they act on a
// resource. It is created on first discovery, adopted (not duplicated) on
// rediscovery after a restart, and removed when the remote resource is
// confirmed gone. Persistence is SQLite behind the Repository interface;
// the Registry adds an in-memory cache so per-cycle lookups stay off the
// database.
package registry
