package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BACKOFFICE_"

// Config is the back-office server configuration.
//
// Sources are applied in order: [Default], the YAML file, BACKOFFICE_* environment
// variables. Command-line flags are applied last by the caller.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Session   SessionConfig   `yaml:"session"`
	Login     LoginConfig     `yaml:"login"`
	Password  PasswordConfig  `yaml:"password"`
	Audit     AuditConfig     `yaml:"audit"`
	Readiness ReadinessConfig `yaml:"readiness"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustProxyHeaders takes the client IP from X-Forwarded-For, X-Real-IP
	// or True-Client-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Embedded runs an in-process miniredis instead of dialing Addr. Development only.
	Embedded bool `yaml:"embedded"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type SessionConfig struct {
	KeyPrefix     string        `yaml:"key_prefix"`
	Period        time.Duration `yaml:"period"`
	CookieName    string        `yaml:"cookie_name"`
	CookieDomain  string        `yaml:"cookie_domain"`
	SecureCookies bool          `yaml:"secure_cookies"`
	AllowBearer   bool          `yaml:"allow_bearer"`
}

type LoginConfig struct {
	ThrottleEnabled bool          `yaml:"throttle_enabled"`
	IPThrottle      bool          `yaml:"ip_throttle"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Window          time.Duration `yaml:"window"`
}

// PasswordConfig holds the argon2id cost. Raising it upgrades stored hashes on
// each user's next successful login.
type PasswordConfig struct {
	MemoryKB    uint32 `yaml:"memory_kb"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
}

type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ReadinessConfig bounds the dependency checks run before the server listens.
type ReadinessConfig struct {
	Attempts uint          `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Default returns the built-in configuration.
func Default() Config {
	engine := goSession.DefaultConfig()

	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Database: DatabaseConfig{
			Path: "backoffice.db",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Session: SessionConfig{
			KeyPrefix:     engine.Session.KeyPrefix,
			Period:        engine.Session.Period,
			CookieName:    engine.Security.CookieName,
			SecureCookies: engine.Security.SecureCookies,
			AllowBearer:   engine.Security.AllowBearerHeader,
		},
		Login: LoginConfig{
			ThrottleEnabled: engine.Security.LoginThrottle.Enabled,
			IPThrottle:      engine.Security.LoginThrottle.EnableIPThrottle,
			MaxAttempts:     engine.Security.LoginThrottle.MaxAttempts,
			Window:          engine.Security.LoginThrottle.Window,
		},
		Password: PasswordConfig{
			MemoryKB:    engine.Password.Memory,
			Time:        engine.Password.Time,
			Parallelism: engine.Password.Parallelism,
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Readiness: ReadinessConfig{
			Attempts: 5,
			Delay:    500 * time.Millisecond,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("SERVER_ADDR", &cfg.Server.Addr)
	boolean("TRUST_PROXY_HEADERS", &cfg.Server.TrustProxyHeaders)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	integer("REDIS_DB", &cfg.Redis.DB)
	boolean("REDIS_EMBEDDED", &cfg.Redis.Embedded)
	str("DB_PATH", &cfg.Database.Path)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)
	duration("SESSION_PERIOD", &cfg.Session.Period)
	str("COOKIE_NAME", &cfg.Session.CookieName)
	str("COOKIE_DOMAIN", &cfg.Session.CookieDomain)
	boolean("COOKIE_SECURE", &cfg.Session.SecureCookies)
	boolean("LOGIN_THROTTLE", &cfg.Login.ThrottleEnabled)
	integer("LOGIN_MAX_ATTEMPTS", &cfg.Login.MaxAttempts)
	duration("LOGIN_WINDOW", &cfg.Login.Window)
	boolean("AUDIT_ENABLED", &cfg.Audit.Enabled)

	return errors.Join(errs...)
}

// Validate checks the server-level settings; engine settings are validated
// again by the engine builder.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must not be empty")
	}
	if !c.Redis.Embedded && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("redis.addr must not be empty unless redis.embedded is set")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Readiness.Attempts == 0 {
		return errors.New("readiness.attempts must be > 0")
	}
	engine := c.Engine()
	return engine.Validate()
}

// Engine maps the server configuration onto the session engine configuration.
func (c Config) Engine() goSession.Config {
	e := goSession.DefaultConfig()

	e.Session.KeyPrefix = c.Session.KeyPrefix
	e.Session.Period = c.Session.Period
	e.Security.CookieName = c.Session.CookieName
	e.Security.CookieDomain = c.Session.CookieDomain
	e.Security.SecureCookies = c.Session.SecureCookies
	e.Security.AllowBearerHeader = c.Session.AllowBearer
	e.Security.LoginThrottle.Enabled = c.Login.ThrottleEnabled
	e.Security.LoginThrottle.EnableIPThrottle = c.Login.IPThrottle
	e.Security.LoginThrottle.MaxAttempts = c.Login.MaxAttempts
	e.Security.LoginThrottle.Window = c.Login.Window
	e.Password.Memory = c.Password.MemoryKB
	e.Password.Time = c.Password.Time
	e.Password.Parallelism = c.Password.Parallelism
	e.Audit.Enabled = c.Audit.Enabled

	return e
}
