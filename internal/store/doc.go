// Package store provides SQLite-backed persistence for watched documents.
//
// The store keeps two tables:
//   - documents: the current body of each document, keyed by collection and id
//   - audit_log: an append-only record of handler firings written by AuditHandler
//
// Collections fire the hooks of a watch.Schema around storage: BeforeLoad
// after every Load, AfterSave after every Create and Save. That is how a
// watch.Watcher sees snapshots without the store knowing about rules.
//
// # Ordering
//
// Documents carry an integer version bumped on every save; a save against
// a stale version fails with ErrVersionConflict. Audit queries order by the
// seq column (ORDER BY seq ASC), never by wall-clock time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Bodies and audit values are stored as RFC 8785 canonical JSON produced by
// ir.MarshalCanonical.
package store
