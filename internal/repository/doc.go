// Package repository defines the data access interfaces for nodeclass.
//
// This package is the Entity Store contract: durable storage for nodes,
// groups, classes, parameters and the membership and inclusion relations.
// The implementation lives in the sqlstore subpackage and runs on SQLite
// or PostgreSQL.
//
// # Transactions
//
// Reads run through View, which opens a read transaction so everything read
// inside the callback comes from one consistent snapshot. Writes run through
// Update, which first takes the store-wide writer lock (bounded by the
// caller's context and the configured lock timeout) and then runs the
// callback in a single transaction. A callback error rolls everything back,
// so no mutation partially commits.
//
// Checks that must be atomic with their write, such as the inclusion cycle
// check, belong inside the Update callback.
//
// # Errors
//
// Lookups of missing rows return *domain.NotFoundError. Unique constraint
// violations (duplicate names, memberships or inclusions) return
// *domain.ConflictError. Failing to take the writer lock in time returns
// domain.ErrTimeout.
package repository
