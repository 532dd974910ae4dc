package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/clinsafe-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/clinsafe-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("CLINSAFE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit_rps", 50)
	viper.SetDefault("server.rate_limit_burst", 100)

	// Authoring store defaults
	viper.SetDefault("authoring.driver", "sqlite")
	viper.SetDefault("authoring.sqlite_path", "clinsafe.db")
	viper.SetDefault("authoring.refresh_interval", "5m")
	viper.SetDefault("authoring.migrations_path", "migrations")
	viper.SetDefault("authoring.postgres.host", "localhost")
	viper.SetDefault("authoring.postgres.port", 5432)
	viper.SetDefault("authoring.postgres.database", "clinsafe")
	viper.SetDefault("authoring.postgres.username", "postgres")
	viper.SetDefault("authoring.postgres.password", "")
	viper.SetDefault("authoring.postgres.ssl_mode", "disable")
	viper.SetDefault("authoring.postgres.max_conns", 25)
	viper.SetDefault("authoring.postgres.min_conns", 5)
	viper.SetDefault("authoring.postgres.conn_max_lifetime", "5m")
	viper.SetDefault("authoring.postgres.conn_max_idle_time", "30m")

	// Rule policy defaults
	viper.SetDefault("rules.supervisor_categories", []string{"DOSING", "HIGH_RISK"})

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.local_size", 1024)
	viper.SetDefault("cache.ttl", "10m")
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.max_retries", 3)

	// Override journal defaults
	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.sqlite_path", "clinsafe_audit.db")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetAuthoringConfig returns authoring store configuration
func (m *Manager) GetAuthoringConfig() *domain.AuthoringConfig {
	return &m.config.Authoring
}

// GetCacheConfig returns cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate authoring store configuration
	switch strings.ToLower(config.Authoring.Driver) {
	case "sqlite":
		if config.Authoring.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "postgres":
		if config.Authoring.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if config.Authoring.Postgres.Database == "" {
			return fmt.Errorf("postgres database name is required")
		}
		if config.Authoring.Postgres.Username == "" {
			return fmt.Errorf("postgres username is required")
		}
	default:
		return fmt.Errorf("invalid authoring driver: %s", config.Authoring.Driver)
	}
	if config.Authoring.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}

	// Validate cache configuration
	if config.Cache.Enabled && config.Cache.LocalSize <= 0 {
		return fmt.Errorf("cache local size must be positive")
	}

	// Validate override journal configuration
	if config.Audit.Enabled && strings.ToLower(config.Authoring.Driver) == "sqlite" && config.Audit.SQLitePath == "" {
		return fmt.Errorf("audit sqlite path is required")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetPostgresConnectionString returns a formatted authoring store connection string
func (m *Manager) GetPostgresConnectionString() string {
	db := m.config.Authoring.Postgres
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
