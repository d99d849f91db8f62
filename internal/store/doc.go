// Package store provides SQLite-backed durable storage for named callback
// chain records.
//
// A chain is stored as one row in chains plus one row per entry in
// chain_entries and one row per side-table slot in chain_targets. Entry
// and target rows belong to their chain through foreign keys with ON
// DELETE CASCADE.
//
// # Ordering
//
// Chains carry a logical seq assigned on first save. Listing queries use
// ORDER BY seq ASC, id COLLATE BINARY ASC so results are identical across
// runs; wall-clock time is never stored.
//
// # Identity
//
// record_hash is ir.RecordID of the saved record, so chains with equal
// records can be found with FindByHash regardless of name. Target values
// are stored as canonical JSON next to their ir.ObjectHash.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: Cascade deletes
package store
