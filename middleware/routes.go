package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/go-chi/chi/v5"
)

// Route is one handler with an optional route-level policy.
type Route struct {
	Method  string
	Pattern string
	Policy  *goSession.Policy
	Handler http.Handler
}

// Controller groups routes under a prefix with a controller-level policy.
type Controller struct {
	Prefix string
	Policy *goSession.Policy
	Routes []Route
}

// PolicyEntry is one resolved row of a [PolicyTable].
type PolicyEntry struct {
	Method  string
	Pattern string
	Policy  *goSession.Policy
}

// PolicyTable maps every mounted method and pattern to its effective policy.
// It is built once by [Gate.Mount] and read-only afterwards.
type PolicyTable struct {
	entries map[string]PolicyEntry
}

// Lookup returns the effective policy for a mounted route. found is false for
// routes that were never mounted; a found route with a nil policy is unsecured.
// A controller root answers with and without its trailing slash.
func (t *PolicyTable) Lookup(method, pattern string) (policy *goSession.Policy, found bool) {
	if t == nil {
		return nil, false
	}
	method = strings.ToUpper(method)
	e, ok := t.entries[routeKey(method, pattern)]
	if !ok && len(pattern) > 1 && strings.HasSuffix(pattern, "/") {
		e, ok = t.entries[routeKey(method, strings.TrimSuffix(pattern, "/"))]
	}
	return e.Policy, ok
}

// Entries returns all rows sorted by pattern, then method.
func (t *PolicyTable) Entries() []PolicyEntry {
	if t == nil {
		return nil
	}
	out := make([]PolicyEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// DuplicateRouteError is returned by Mount when a method and pattern is declared twice.
type DuplicateRouteError struct {
	Method  string
	Pattern string
}

// Error implements error.
func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("duplicate route %s %s", e.Method, e.Pattern)
}

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Mount resolves the policy of every route and registers it on r wrapped with
// [Gate.Require]. Nothing is registered if any route is invalid or duplicated.
func (g *Gate) Mount(r chi.Router, controllers ...Controller) (*PolicyTable, error) {
	table := &PolicyTable{entries: make(map[string]PolicyEntry)}
	type pending struct {
		entry   PolicyEntry
		handler http.Handler
		root    bool
	}
	var routes []pending

	for _, c := range controllers {
		for _, rt := range c.Routes {
			method := strings.ToUpper(strings.TrimSpace(rt.Method))
			if !knownMethods[method] {
				return nil, fmt.Errorf("route %q: unsupported method %q", rt.Pattern, rt.Method)
			}
			if rt.Handler == nil {
				return nil, fmt.Errorf("route %s %s: nil handler", method, rt.Pattern)
			}

			pattern := joinPattern(c.Prefix, rt.Pattern)
			key := routeKey(method, pattern)
			if _, exists := table.entries[key]; exists {
				return nil, &DuplicateRouteError{Method: method, Pattern: pattern}
			}

			policy := rt.Policy
			if policy == nil {
				policy = c.Policy
			}
			if policy != nil {
				p := *policy
				policy = &p
			}

			entry := PolicyEntry{Method: method, Pattern: pattern, Policy: policy}
			table.entries[key] = entry
			root := (rt.Pattern == "" || rt.Pattern == "/") && pattern != "/"
			routes = append(routes, pending{entry: entry, handler: rt.Handler, root: root})
		}
	}

	for _, p := range routes {
		h := g.Require(p.entry.Policy)(p.handler)
		r.Method(p.entry.Method, p.entry.Pattern, h)
		// a controller root also answers on prefix + "/" unless declared elsewhere
		if alias := p.entry.Pattern + "/"; p.root {
			if _, declared := table.entries[routeKey(p.entry.Method, alias)]; !declared {
				r.Method(p.entry.Method, alias, h)
			}
		}
		g.logger.Debug("route mounted",
			"method", p.entry.Method,
			"pattern", p.entry.Pattern,
			"policy", describePolicy(p.entry.Policy),
		)
	}

	return table, nil
}

func joinPattern(prefix, pattern string) string {
	prefix = strings.TrimRight(prefix, "/")
	if pattern == "" || pattern == "/" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix + pattern
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

func describePolicy(p *goSession.Policy) string {
	switch {
	case p == nil:
		return "unsecured"
	case p.RequireAdminPermission && p.AllowAnonymous:
		return "anonymous-or-admin"
	case p.RequireAdminPermission:
		return "admin"
	case p.AllowAnonymous:
		return "anonymous"
	default:
		return "authenticated"
	}
}
