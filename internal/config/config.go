// Package config provides configuration management for the write proxy.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/devrev/tsdb-client-go/pkg/client"
	"github.com/spf13/viper"
)

// Config holds all configuration for the write proxy.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Client      client.Config     `mapstructure:"client"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// LedgerConfig selects where failed key sets are recorded.
type LedgerConfig struct {
	// Backend is memory or postgres
	Backend     string `mapstructure:"backend"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	ListLimit   int    `mapstructure:"list_limit"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tsdb-proxy/")
	}

	v.SetEnvPrefix("TSDB_PROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Missing config file is fine, defaults and env still apply
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
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 32*1024*1024)

	d := client.DefaultConfig()
	v.SetDefault("client.endpoint", d.Endpoint)
	v.SetDefault("client.endpoints", []string{})
	v.SetDefault("client.database", d.Database)
	v.SetDefault("client.route_mode", d.RouteMode)
	v.SetDefault("client.route_file", "")
	v.SetDefault("client.tenant", "")
	v.SetDefault("client.token", "")
	v.SetDefault("client.rpc_timeout", d.RPCTimeout.String())
	v.SetDefault("client.connect_timeout", d.ConnectTimeout.String())
	v.SetDefault("client.keepalive_time", d.KeepaliveTime.String())
	v.SetDefault("client.keepalive_timeout", d.KeepaliveTimeout.String())
	v.SetDefault("client.reconnect_base_delay", d.ReconnectBaseDelay.String())
	v.SetDefault("client.reconnect_max_delay", d.ReconnectMaxDelay.String())
	v.SetDefault("client.max_receive_message_size", d.MaxRecvMsgSize)
	v.SetDefault("client.max_send_message_size", d.MaxSendMsgSize)
	v.SetDefault("client.max_concurrent_targets", d.MaxConcurrentTargets)
	v.SetDefault("client.virtual_nodes", d.VirtualNodes)
	v.SetDefault("client.route_cache_ttl", d.RouteCacheTTL.String())
	v.SetDefault("client.route_cache_size", d.RouteCacheSize)
	v.SetDefault("client.route_cache_cleanup_interval", d.RouteCacheCleanupInterval.String())
	v.SetDefault("client.redis.addr", "")
	v.SetDefault("client.redis.password", "")
	v.SetDefault("client.redis.db", 0)
	v.SetDefault("client.redis.prefix", "tsdb:route:")

	v.SetDefault("ledger.backend", "memory")
	v.SetDefault("ledger.postgres_dsn", "")
	v.SetDefault("ledger.list_limit", 100)

	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 1000.0)
	v.SetDefault("rate_limiter.burst_size", 100)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}

	switch c.Ledger.Backend {
	case "memory":
	case "postgres":
		if c.Ledger.PostgresDSN == "" {
			return fmt.Errorf("postgres ledger requires a dsn")
		}
	default:
		return fmt.Errorf("invalid ledger backend: %q", c.Ledger.Backend)
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics path is required when metrics are enabled")
	}

	return nil
}
