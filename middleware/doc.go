// Package middleware adapts the goSession Engine to net/http.
//
// # Gate
//
// [Gate.Require] wraps a handler with one endpoint policy: it reads the session
// token from the cookie (or an Authorization bearer header), asks
// Engine.Authorize for a decision and either rejects the request or passes it on
// with the resolved identity in the context ([IdentityFromContext]).
//
// # Policy table
//
// [Gate.Mount] registers [Controller] route groups on a chi router. Each route's
// policy is resolved once, at registration: a route-level policy overrides the
// controller-level one, and a route with neither is unsecured. The resulting
// [PolicyTable] can be inspected at runtime.
//
// # What this package must NOT do
//
//   - Talk to the session store directly (all decisions go through the Engine).
//   - Inspect handler types or reflect over them to discover policies.
package middleware
