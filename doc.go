// Package goSession provides the session and authorization core of the back office:
// opaque bearer-token sessions kept in a TTL key-value store, a collision-checked
// token generator, and the policy decision used by the HTTP gate in
// [github.com/MrEthical07/goSession/middleware].
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
// The Engine keeps no per-session state of its own; every session lives in the
// store behind [session.Backend].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config] and value
// types ([Session], [User], [Policy], [Identity]). Store encoding, batch building and
// the login throttle live in sub-packages.
//
// # What this package must NOT do
//
//   - Wrap store batches in transactions or take distributed locks.
//   - Sweep expired sessions. The store TTL is the only expiry mechanism.
//   - Raise an error for an absent session on read paths.
//
// # Performance contract
//
// GetSession is the hot path: exactly one store round trip plus one identity lookup.
// CreateNewSession performs one existence round trip per candidate token and one
// write round trip.
package goSession
