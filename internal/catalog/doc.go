// Package catalog declares which remote resource types Gray Gate mirrors
// and how their raw controller payloads map onto engine snapshots.
//
// Each type is one Spec: collection path, significant fields, enabled
// flag, and any companion children derived from nested flags. The engine
// consumes specs through Registrations; adding a mirrored type is one new
// entry in Default, nothing else.
package catalog
