// Package config loads process configuration from the environment. Values are
// read once at startup and never mutated afterwards.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	liststrings "cinelog/pkg/platform/strings"
)

// Config is the root configuration.
type Config struct {
	Server   Server
	Auth     Auth
	Database Database
	Redis    RedisConfig
	Kafka    Kafka
	Realtime Realtime
	Lockout  Lockout
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"CINELOG_ADDR" env-default:":8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Auth holds token signing and cookie settings.
type Auth struct {
	SecretKey       string        `env:"SECRET_KEY" env-default:"dev-secret-key-change-in-production"`
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TOKEN_TTL" env-default:"30m"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_TOKEN_TTL" env-default:"168h"`
	CookieSecure    bool          `env:"AUTH_COOKIE_SECURE" env-default:"false"`
	CookieHTTPOnly  bool          `env:"AUTH_COOKIE_HTTP_ONLY" env-default:"false"`
}

// Database configures the postgres store. An empty URL selects in-memory stores.
type Database struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" env-default:"10"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" env-default:"30m"`
	ConnectTimeout  time.Duration `env:"DATABASE_CONNECT_TIMEOUT" env-default:"5s"`
}

// RedisConfig configures the identity lookup cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" env-default:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" env-default:"3s"`
	IdentityTTL  time.Duration `env:"REDIS_IDENTITY_TTL" env-default:"5m"`
}

// Kafka configures the security audit sink. No brokers means audit events
// are only logged.
type Kafka struct {
	Brokers    []string `env:"KAFKA_BROKERS" env-separator:","`
	AuditTopic string   `env:"KAFKA_AUDIT_TOPIC" env-default:"cinelog.audit.security"`
}

// Realtime tunes the notification socket.
type Realtime struct {
	WriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" env-default:"5s"`
	PingInterval time.Duration `env:"WS_PING_INTERVAL" env-default:"30s"`
	ReadLimit    int64         `env:"WS_READ_LIMIT" env-default:"4096"`
}

// Lockout throttles password guessing on login. MaxFailures <= 0 disables it.
type Lockout struct {
	MaxFailures int           `env:"LOGIN_MAX_FAILURES" env-default:"5"`
	Window      time.Duration `env:"LOGIN_LOCKOUT_WINDOW" env-default:"15m"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env config: %w", err)
	}
	cfg.Kafka.Brokers = liststrings.CompactList(cfg.Kafka.Brokers)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Auth.SecretKey) == "" {
		return fmt.Errorf("SECRET_KEY must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Lockout.MaxFailures > 0 && c.Lockout.Window <= 0 {
		return fmt.Errorf("LOGIN_LOCKOUT_WINDOW must be positive")
	}
	if c.Realtime.WriteTimeout <= 0 {
		return fmt.Errorf("WS_WRITE_TIMEOUT must be positive")
	}
	return nil
}
