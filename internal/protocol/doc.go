// Package protocol owns the wire contract between the two bench nodes.
//
// Ownership boundary:
// - the fixed-size telemetry/actuation packet layout
// - role and signal-kind addressing
// - encode/decode primitives
//
// Dispatch on (origin, kind) belongs to the node receive handlers, not
// to this package.
package protocol
