// Package state persists resolved scenario configurations.
//
// Store[T] loads and saves one snapshot per Ref, where a Ref names a study, a
// case and a planning year. Two implementations ship with the package:
// MemoryStore for tests and examples, and SQLiteStore which keeps snapshots as
// JSON rows in a SQLite database.
//
// Data flow:
//
//	Resolver.Resolve -> Result -> SaveResult -> Store
//
// Concurrency control:
//
//	Meta.ETag is a version token. Saving with a non-empty ETag that differs
//	from the stored one fails with ErrETagMismatch; saving with an empty ETag
//	overwrites unconditionally. Every successful save returns a fresh ETag.
package state
