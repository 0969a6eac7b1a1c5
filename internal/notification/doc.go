// Package notification implements the in-memory notification store: an
// insertion-ordered list of ephemeral messages with kind-dependent
// auto-removal timeouts, idempotent removal by id, and bus events for
// consumers rendering snapshots.
//
// Non-persistent entries are removed automatically after their effective
// timeout (explicit value, or the per-kind default). Persistent entries stay
// until removed explicitly. Clear() intentionally leaves pending removal
// timers running: a timer firing against an already-absent id is a no-op.
package notification
