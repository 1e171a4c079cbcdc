// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Outcomes  OutcomesConfig  `mapstructure:"outcomes"`
	Settings  SettingsConfig  `mapstructure:"settings"`
	Catalogue CatalogueConfig `mapstructure:"catalogue"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// NATSConfig holds the message bus connection used between client and server.
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	Name           string        `mapstructure:"name"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	QueueGroup     string        `mapstructure:"queue_group"`
}

// SyncConfig holds the client-side sync queue settings.
type SyncConfig struct {
	CommitTimeout time.Duration `mapstructure:"commit_timeout"`
	QueueCapacity int           `mapstructure:"queue_capacity"`
}

// OutcomesConfig holds the vaal outcome engine settings.
type OutcomesConfig struct {
	// TablePath points to a YAML weight table. Empty means built-in weights.
	TablePath string `mapstructure:"table_path"`
	// ForcedPolicy is "allow" or "fallback" and decides what a forced
	// outcome does when it does not apply to the card's variant.
	ForcedPolicy string `mapstructure:"forced_policy"`
	// Authoritative makes the server decide outcomes.
	Authoritative bool `mapstructure:"authoritative"`
	Seed          uint64 `mapstructure:"seed"`
}

// SettingsConfig holds the local session settings file.
type SettingsConfig struct {
	Path string `mapstructure:"path"`
}

// CatalogueConfig holds the card template source.
type CatalogueConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds authoritative server settings.
type ServerConfig struct {
	InitialOrbs int64         `mapstructure:"initial_orbs"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the given directory, the working directory
// and ./config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, NATS_URL, OUTCOMES_AUTHORITATIVE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values viper cannot constrain on its own.
func (c *Config) Validate() error {
	switch c.Outcomes.ForcedPolicy {
	case "allow", "fallback":
	default:
		return fmt.Errorf("invalid outcomes.forced_policy %q: must be allow or fallback", c.Outcomes.ForcedPolicy)
	}
	if c.Sync.QueueCapacity < 1 {
		return fmt.Errorf("invalid sync.queue_capacity %d: must be at least 1", c.Sync.QueueCapacity)
	}
	if c.Sync.CommitTimeout <= 0 {
		return fmt.Errorf("invalid sync.commit_timeout %s: must be positive", c.Sync.CommitTimeout)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "altar")
	v.SetDefault("database.name", "altar")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "altar")
	v.SetDefault("nats.request_timeout", "5s")
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.queue_group", "altar-workers")

	v.SetDefault("sync.commit_timeout", "10s")
	v.SetDefault("sync.queue_capacity", 64)

	v.SetDefault("outcomes.table_path", "")
	v.SetDefault("outcomes.forced_policy", "allow")
	v.SetDefault("outcomes.authoritative", true)
	v.SetDefault("outcomes.seed", 0)

	v.SetDefault("settings.path", "altar-settings.yaml")
	v.SetDefault("catalogue.path", "")

	v.SetDefault("server.initial_orbs", 10)
	v.SetDefault("server.lock_timeout", "5s")

	v.SetDefault("log.level", "info")
}
