// Package session provides the key-value persistence layer for back-office sessions:
// the [Backend] batch abstraction, a Redis implementation, an in-memory implementation,
// and the [Store] that maps session records onto hash keys.
//
// # Batches
//
// Every store round trip is an ordered list of [Op] values submitted through
// [Backend.Exec], which returns one [Result] per op in the same order. Batches are
// pipelined, not transactional: commands from two concurrent batches may interleave.
// Nothing in this package pretends otherwise.
//
// # Key layout
//
// A session lives in one hash at "<prefix>:<token>" (default prefix "S") holding the
// reserved fields __userId, __created and __last plus any caller-defined values.
// Expiry is the key TTL; there is no sweeper.
//
// # What this package must NOT do
//
//   - Import goSession or middleware (no upward imports).
//   - Resolve users or make authorization decisions.
//   - Retry failed round trips.
package session
