// Package thread provides the ephemeral ThreadStore implementation: an
// in-process map of threads, their event logs and dedup bookkeeping, with a
// full Reset for test isolation. The durable SQLite implementation lives in
// the sqlite subpackage and satisfies the identical contract.
package thread
