package client

import (
	"fmt"
	"time"

	"github.com/devrev/tsdb-client-go/pkg/errors"
)

// Route modes
const (
	RouteModeServer = "server"
	RouteModeHash   = "hash"
	RouteModeStatic = "static"
)

// Config holds everything the client needs to reach a cluster.
type Config struct {
	// Endpoint is the bootstrap node asked for routes in server mode.
	Endpoint string `mapstructure:"endpoint"`
	// Endpoints are the nodes placed on the hash ring in hash mode.
	Endpoints []string `mapstructure:"endpoints"`
	Database  string   `mapstructure:"database"`
	RouteMode string   `mapstructure:"route_mode"`
	RouteFile string   `mapstructure:"route_file"`

	Tenant string `mapstructure:"tenant"`
	Token  string `mapstructure:"token"`

	RPCTimeout         time.Duration `mapstructure:"rpc_timeout"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	KeepaliveTime      time.Duration `mapstructure:"keepalive_time"`
	KeepaliveTimeout   time.Duration `mapstructure:"keepalive_timeout"`
	ReconnectBaseDelay time.Duration `mapstructure:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `mapstructure:"reconnect_max_delay"`
	MaxRecvMsgSize     int           `mapstructure:"max_receive_message_size"`
	MaxSendMsgSize     int           `mapstructure:"max_send_message_size"`

	MaxConcurrentTargets int `mapstructure:"max_concurrent_targets"`
	VirtualNodes         int `mapstructure:"virtual_nodes"`

	// RouteCacheTTL is how long a resolved route is trusted.
	// RouteCacheCleanupInterval is how often the in-memory cache drops
	// expired routes; it does not apply to Redis, which expires keys itself.
	RouteCacheTTL             time.Duration `mapstructure:"route_cache_ttl"`
	RouteCacheCleanupInterval time.Duration `mapstructure:"route_cache_cleanup_interval"`
	RouteCacheSize            int           `mapstructure:"route_cache_size"`
	Redis                     RedisConfig   `mapstructure:"redis"`
}

// RedisConfig enables a route cache shared between clients when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// DefaultConfig returns a configuration for a local single node
func DefaultConfig() Config {
	return Config{
		Endpoint:             "localhost:8831",
		Database:             "public",
		RouteMode:            RouteModeServer,
		RPCTimeout:           30 * time.Second,
		ConnectTimeout:       5 * time.Second,
		KeepaliveTime:        30 * time.Second,
		KeepaliveTimeout:     10 * time.Second,
		ReconnectBaseDelay:   100 * time.Millisecond,
		ReconnectMaxDelay:    10 * time.Second,
		MaxRecvMsgSize:       16 * 1024 * 1024,
		MaxSendMsgSize:       16 * 1024 * 1024,
		MaxConcurrentTargets: 16,
		VirtualNodes:         150,
		RouteCacheTTL:        5 * time.Minute,
		RouteCacheSize:       10000,

		RouteCacheCleanupInterval: time.Minute,
	}
}

// withDefaults fills zero values from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RouteMode == "" {
		c.RouteMode = d.RouteMode
	}
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.RPCTimeout <= 0 {
		c.RPCTimeout = d.RPCTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.MaxConcurrentTargets <= 0 {
		c.MaxConcurrentTargets = d.MaxConcurrentTargets
	}
	if c.VirtualNodes <= 0 {
		c.VirtualNodes = d.VirtualNodes
	}
	if c.RouteCacheTTL <= 0 {
		c.RouteCacheTTL = d.RouteCacheTTL
	}
	if c.RouteCacheSize <= 0 {
		c.RouteCacheSize = d.RouteCacheSize
	}
	if c.RouteCacheCleanupInterval <= 0 {
		c.RouteCacheCleanupInterval = d.RouteCacheCleanupInterval
	}
	return c
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.RouteMode {
	case RouteModeServer:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required in %s route mode", c.RouteMode)
		}
	case RouteModeHash:
		if len(c.Endpoints) == 0 {
			return fmt.Errorf("at least one endpoint is required in %s route mode", c.RouteMode)
		}
	case RouteModeStatic:
		if c.RouteFile == "" {
			return fmt.Errorf("route file is required in %s route mode", c.RouteMode)
		}
	default:
		return fmt.Errorf("invalid route mode: %q", c.RouteMode)
	}

	if c.Token != "" && c.Tenant == "" {
		return &errors.AuthFailure{
			Code: errors.AuthInvalidTenantMetadata,
			Msg:  "token is set but tenant is empty",
		}
	}

	if c.MaxConcurrentTargets < 0 {
		return fmt.Errorf("max concurrent targets must not be negative")
	}

	return nil
}
