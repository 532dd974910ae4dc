package domain

import (
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Authoring AuthoringConfig `mapstructure:"authoring"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// AuthoringConfig describes the external authoring store the knowledge and
// rule snapshots are loaded from. Driver is "sqlite" (embedded default) or
// "postgres".
type AuthoringConfig struct {
	Driver          string         `mapstructure:"driver"`
	SQLitePath      string         `mapstructure:"sqlite_path"`
	Postgres        DatabaseConfig `mapstructure:"postgres"`
	RefreshInterval time.Duration  `mapstructure:"refresh_interval"`
	MigrationsPath  string         `mapstructure:"migrations_path"`
}

// DatabaseConfig represents Postgres connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RulesConfig carries evaluation policy knobs that are configuration, not
// rule content.
type RulesConfig struct {
	// SupervisorCategories lists rule categories whose fired outcomes
	// require supervisory sign-off to override.
	SupervisorCategories []string `mapstructure:"supervisor_categories"`
}

// CacheConfig configures the decision memoization layer. The core itself is
// a pure function of snapshot and input; caching sits outside it.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	LocalSize   int           `mapstructure:"local_size"`
	TTL         time.Duration `mapstructure:"ttl"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// AuditConfig configures the override journal. The journal shares the
// Postgres store when the authoring driver is postgres; otherwise it lives
// in its own writable SQLite file.
type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
