package goSession

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/session"
)

// Config is the Engine configuration. Start from [DefaultConfig] and override fields.
type Config struct {
	Session  SessionConfig
	Security SecurityConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls key layout, lifetime and token generation.
type SessionConfig struct {
	// KeyPrefix namespaces session keys as "<prefix>:<token>".
	KeyPrefix string
	// Period is the sliding TTL reset on every successful lookup.
	Period time.Duration
	// TokenLength is the number of alphanumeric characters in a token.
	TokenLength int
	// MaxCreateAttempts bounds the token collision loop.
	MaxCreateAttempts int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters for Login.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig covers the session carrier and the login throttle.
type SecurityConfig struct {
	CookieName     string
	CookiePath     string
	CookieDomain   string
	SecureCookies  bool
	SameSitePolicy http.SameSite
	// AllowBearerHeader lets the gate read "Authorization: Bearer <token>" when no cookie is sent.
	AllowBearerHeader bool
	LoginThrottle     LoginThrottleConfig
}

// LoginThrottleConfig is a fixed-window limit on failed logins.
type LoginThrottleConfig struct {
	Enabled          bool
	EnableIPThrottle bool
	MaxAttempts      int
	Window           time.Duration
	KeyPrefix        string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: "S:<token>" keys, a one-day
// sliding period, 32-character tokens and 100 collision attempts.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			KeyPrefix:         session.DefaultKeyPrefix,
			Period:            24 * time.Hour,
			TokenLength:       internal.DefaultTokenLength,
			MaxCreateAttempts: 100,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			CookieName:        "SESSION",
			CookiePath:        "/",
			SecureCookies:     true,
			SameSitePolicy:    http.SameSiteLaxMode,
			AllowBearerHeader: true,
			LoginThrottle: LoginThrottleConfig{
				Enabled:          true,
				EnableIPThrottle: false,
				MaxAttempts:      5,
				Window:           15 * time.Minute,
				KeyPrefix:        "rl",
			},
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the Engine cannot run with.
func (c *Config) Validate() error {
	// Session
	if strings.TrimSpace(c.Session.KeyPrefix) == "" {
		return errors.New("Session KeyPrefix must not be empty")
	}
	if strings.Contains(c.Session.KeyPrefix, ":") {
		return errors.New("Session KeyPrefix must not contain ':'")
	}
	if c.Session.Period <= 0 {
		return errors.New("Session Period must be > 0")
	}
	if c.Session.Period < time.Millisecond {
		return errors.New("Session Period must be >= 1ms")
	}
	if c.Session.TokenLength < 16 {
		return errors.New("Session TokenLength must be >= 16")
	}
	if c.Session.MaxCreateAttempts < 1 {
		return errors.New("Session MaxCreateAttempts must be >= 1")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Security
	if strings.TrimSpace(c.Security.CookieName) == "" {
		return errors.New("Security CookieName must not be empty")
	}
	if c.Security.SameSitePolicy == http.SameSiteNoneMode && !c.Security.SecureCookies {
		return errors.New("SameSite=None requires SecureCookies")
	}
	if t := c.Security.LoginThrottle; t.Enabled {
		if t.MaxAttempts <= 0 {
			return errors.New("LoginThrottle MaxAttempts must be > 0")
		}
		if t.Window <= 0 {
			return errors.New("LoginThrottle Window must be > 0")
		}
	}

	return nil
}
