// Package rate implements the Redis fixed-window throttle that guards the
// back-office login endpoint.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - lu: failed logins per username
//   - li: failed logins per client IP (only when IP throttling is on)
//
// # What this package must NOT do
//
//   - Decide whether credentials are valid; callers report failures.
//   - Be imported outside the goSession module.
package rate
