package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// DefaultCookieName is the session cookie name used when none is configured.
const DefaultCookieName = "SESSION"

type identityContextKey struct{}

// IdentityFromContext returns the identity the gate attached, if any.
func IdentityFromContext(ctx context.Context) (*goSession.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*goSession.Identity)
	return id, ok && id != nil
}

// ContextWithIdentity attaches id to ctx the way the gate does.
func ContextWithIdentity(ctx context.Context, id *goSession.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Authorizer is the decision the gate delegates to. *goSession.Engine implements it.
type Authorizer interface {
	Authorize(ctx context.Context, policy *goSession.Policy, token string) (*goSession.Identity, error)
}

// Gate enforces endpoint policies on inbound requests.
type Gate struct {
	authorizer  Authorizer
	cookieName  string
	allowBearer bool
	logger      *slog.Logger
}

// GateOption configures a [Gate].
type GateOption func(*Gate)

// WithCookieName overrides the cookie the token is read from.
func WithCookieName(name string) GateOption {
	return func(g *Gate) {
		if name != "" {
			g.cookieName = name
		}
	}
}

// WithBearerHeader enables or disables reading "Authorization: Bearer <token>".
func WithBearerHeader(enabled bool) GateOption {
	return func(g *Gate) {
		g.allowBearer = enabled
	}
}

// WithLogger sets the logger for denied requests and mounted routes.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate builds a gate over an Engine. Cookie name and bearer support default
// to the Engine's security config.
func NewGate(engine *goSession.Engine, opts ...GateOption) *Gate {
	cfg := engine.Config().Security
	g := newGate(engine)
	g.allowBearer = cfg.AllowBearerHeader
	if cfg.CookieName != "" {
		g.cookieName = cfg.CookieName
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGateWithAuthorizer builds a gate over any [Authorizer].
func NewGateWithAuthorizer(a Authorizer, opts ...GateOption) *Gate {
	g := newGate(a)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func newGate(a Authorizer) *Gate {
	return &Gate{
		authorizer:  a,
		cookieName:  DefaultCookieName,
		allowBearer: true,
		logger:      slog.Default(),
	}
}

// Require returns middleware enforcing policy. A nil policy passes every request
// through unchanged.
func (g *Gate) Require(policy *goSession.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if policy == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := g.TokenFromRequest(r)

			identity, err := g.authorizer.Authorize(r.Context(), policy, token)
			if err != nil {
				g.deny(w, r, err)
				return
			}

			if identity != nil {
				r = r.WithContext(ContextWithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, goSession.ErrNotAuthorized) {
		WriteError(w, http.StatusUnauthorized, CodeNotAuthorized, "not authorized")
		return
	}

	g.logger.ErrorContext(r.Context(), "authorization failed",
		"method", r.Method,
		"path", r.URL.Path,
		"err", err,
	)
	status, code := StatusFor(err)
	WriteError(w, status, code, http.StatusText(status))
}

// TokenFromRequest reads the session token from the cookie, falling back to a
// bearer header when enabled. It returns "" when neither is present.
func (g *Gate) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if !g.allowBearer {
		return ""
	}
	token, _ := bearerToken(r.Header.Get("Authorization"))
	return token
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
