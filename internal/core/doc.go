// Package core provides the inventory business logic over PostgreSQL.
//
// It is independent of any UI or transport layer: the web handlers, the
// stockctl CLI and the tests all drive the same [Service].
//
// # Architecture
//
//   - Settings engine: lookup tables registered with [Register] are listed,
//     edited, deactivated, reactivated and deleted generically. Columns
//     come from each [TableDefinition]; table keys must be registered and
//     identifiers are always quoted, so nothing user-supplied reaches the
//     statement text.
//   - Domain modules: products and inventory, purchase requests, stock
//     movements, internal requests, suppliers, users and the dashboard.
//   - Audit: every mutation is recorded with the actor, ip and user agent
//     taken from the context.
//   - Maintenance: stock status is recomputed inside every operation that
//     changes stock. [Service.RefreshStockStatus], [Service.PurgeAudit] and
//     [Service.ResetActivity] are run on demand by stockctl or the API.
//
// # Soft delete
//
// Tables with an activo column are never emptied by accident:
// [Service.Delete] falls back to [Service.SoftDelete] when the row is still
// referenced (SQLSTATE 23503) and reports [OutcomeDeactivated].
//
// # Transactions
//
// Single statements autocommit through the pool. Operations that write
// several rows (product plus inventory row, internal request plus lines,
// stock decrements and movements) run in one transaction and roll back as
// a unit.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError].
// Codes are grouped as DB, VAL, INV, AUTH, TBL and RATE; ERR000 is the
// fallback.
package core
