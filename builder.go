package goSession

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it once during startup; Build may be
// called a single time.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	backend     session.Backend
	resolver    IdentityResolver
	credentials CredentialStore
	tokens      TokenGenerator
	logger      *slog.Logger
	auditSink   AuditSink
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the engine configuration. Build validates it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client used for the session store and the login
// throttle. The client is owned by the caller.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithBackend overrides the session store backend. Without it the Engine runs
// on [session.RedisBackend] over the client from WithRedis.
func (b *Builder) WithBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

// WithIdentityResolver sets the user lookup run on every authorized request.
func (b *Builder) WithIdentityResolver(r IdentityResolver) *Builder {
	b.resolver = r
	return b
}

// WithCredentialStore sets the username lookup used by Login. When unset, the
// identity resolver is used if it also implements [CredentialStore].
func (b *Builder) WithCredentialStore(c CredentialStore) *Builder {
	b.credentials = c
	return b
}

// WithTokenGenerator replaces the default crypto/rand token generator.
func (b *Builder) WithTokenGenerator(g TokenGenerator) *Builder {
	b.tokens = g
	return b
}

// WithLogger sets the engine logger. Without it warnings go to stderr.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events are delivered.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock sets the time source for createdAt and lastAccessAt stamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the session lookup latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine. It performs no I/O.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.resolver == nil {
		return nil, errors.New("identity resolver required")
	}

	backend := b.backend
	if backend == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or session backend required")
		}
		backend = session.NewRedisBackend(b.redis)
	}

	if cfg.Security.LoginThrottle.Enabled && b.redis == nil {
		return nil, errors.New("LoginThrottle requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	engine := &Engine{
		config:   cfg,
		backend:  backend,
		store:    session.NewStore(backend, cfg.Session.KeyPrefix),
		resolver: b.resolver,
		logger:   logger.With("component", "session"),
		now:      b.now,
	}
	if engine.now == nil {
		engine.now = time.Now
	}

	engine.credentials = b.credentials
	if engine.credentials == nil {
		if cs, ok := b.resolver.(CredentialStore); ok {
			engine.credentials = cs
		}
	}

	engine.tokens = b.tokens
	if engine.tokens == nil {
		length := cfg.Session.TokenLength
		engine.tokens = func() (string, error) {
			return internal.NewSessionToken(length)
		}
	}

	if cfg.Security.LoginThrottle.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Enabled:          true,
			EnableIPThrottle: cfg.Security.LoginThrottle.EnableIPThrottle,
			MaxAttempts:      cfg.Security.LoginThrottle.MaxAttempts,
			Window:           cfg.Security.LoginThrottle.Window,
			Prefix:           cfg.Security.LoginThrottle.KeyPrefix,
		})
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	b.built = true

	return engine, nil
}
