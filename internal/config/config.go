package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/dmmcquay/sgfrender/internal/render"
	"github.com/dmmcquay/sgfrender/internal/theme"
)

// EnvPrefix prefixes every environment override, e.g. SGFRENDER_RENDER_THEME.
const EnvPrefix = "SGFRENDER"

type Config struct {
	// Render defaults applied when a request leaves an option unset
	Render RenderConfig `mapstructure:"render" json:"render"`

	// Server configuration
	Server ServerConfig `mapstructure:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`

	// Render cache configuration
	Cache CacheConfig `mapstructure:"cache" json:"cache"`

	// Rate limiting for MCP tools and the HTTP render endpoint
	RateLimit RateLimitConfig `mapstructure:"rateLimit" json:"rateLimit"`
}

type RenderConfig struct {
	Theme       string `mapstructure:"theme" json:"theme"`
	Kifu        bool   `mapstructure:"kifu" json:"kifu"`
	CellSize    int    `mapstructure:"cellSize" json:"cellSize"`
	Coordinates bool   `mapstructure:"coordinates" json:"coordinates"`
}

type ServerConfig struct {
	Name        string `mapstructure:"name" json:"name"`
	Version     string `mapstructure:"version" json:"version"`
	Description string `mapstructure:"description" json:"description"`
	// HTTPAddr is the listen address of the HTTP API; empty disables it.
	HTTPAddr string `mapstructure:"httpAddr" json:"httpAddr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
	File   string `mapstructure:"file" json:"file"`
}

type CacheConfig struct {
	Enabled       bool   `mapstructure:"enabled" json:"enabled"`
	Backend       string `mapstructure:"backend" json:"backend"` // memory or redis
	MaxItems      int    `mapstructure:"maxItems" json:"maxItems"`
	MaxSizeBytes  int64  `mapstructure:"maxSizeBytes" json:"maxSizeBytes"`
	TTLSeconds    int    `mapstructure:"ttlSeconds" json:"ttlSeconds"`
	RedisAddr     string `mapstructure:"redisAddr" json:"redisAddr"`
	RedisPassword string `mapstructure:"redisPassword" json:"redisPassword"`
	RedisDB       int    `mapstructure:"redisDB" json:"redisDB"`
	KeyPrefix     string `mapstructure:"keyPrefix" json:"keyPrefix"`
	// ConnectAttempts bounds the retries when the redis backend is
	// unreachable at startup.
	ConnectAttempts int `mapstructure:"connectAttempts" json:"connectAttempts"`
}

type RateLimitConfig struct {
	Enabled        bool           `mapstructure:"enabled" json:"enabled"`
	RequestsPerMin int            `mapstructure:"requestsPerMin" json:"requestsPerMin"`
	BurstSize      int            `mapstructure:"burstSize" json:"burstSize"`
	PerToolLimits  map[string]int `mapstructure:"perToolLimits" json:"perToolLimits"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("render.theme", theme.Default)
	v.SetDefault("render.kifu", false)
	v.SetDefault("render.cellSize", render.DefaultCellSize)
	v.SetDefault("render.coordinates", true)

	v.SetDefault("server.name", "sgfrender")
	v.SetDefault("server.version", "0.1.0")
	v.SetDefault("server.description", "Go game record renderer")
	v.SetDefault("server.httpAddr", ":8080")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.maxItems", 256)
	v.SetDefault("cache.maxSizeBytes", 64*1024*1024)
	v.SetDefault("cache.ttlSeconds", 3600)
	v.SetDefault("cache.redisAddr", "localhost:6379")
	v.SetDefault("cache.redisPassword", "")
	v.SetDefault("cache.redisDB", 0)
	v.SetDefault("cache.keyPrefix", "sgfrender:")
	v.SetDefault("cache.connectAttempts", 3)

	v.SetDefault("rateLimit.enabled", false)
	v.SetDefault("rateLimit.requestsPerMin", 120)
	v.SetDefault("rateLimit.burstSize", 20)
}

// Load reads defaults, then the optional config file (YAML, JSON or TOML by
// extension), then SGFRENDER_* environment overrides, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := theme.Resolve(c.Render.Theme); err != nil {
		return err
	}

	// Clamp numeric ranges
	if c.Render.CellSize < render.MinCellSize {
		c.Render.CellSize = render.MinCellSize
	}
	if c.Render.CellSize > render.MaxCellSize {
		c.Render.CellSize = render.MaxCellSize
	}

	c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.Enabled {
		if c.Cache.MaxItems < 1 {
			c.Cache.MaxItems = 1
		}
		if c.Cache.MaxSizeBytes < 1024 {
			c.Cache.MaxSizeBytes = 1024
		}
		if c.Cache.TTLSeconds < 0 {
			c.Cache.TTLSeconds = 0
		}
		if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend redis requires redisAddr")
		}
		if c.Cache.ConnectAttempts < 1 {
			c.Cache.ConnectAttempts = 1
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMin < 1 {
			return fmt.Errorf("rateLimit.requestsPerMin must be positive")
		}
		if c.RateLimit.BurstSize < 1 {
			c.RateLimit.BurstSize = 1
		}
		for tool, limit := range c.RateLimit.PerToolLimits {
			if limit < 1 {
				return fmt.Errorf("rateLimit.perToolLimits.%s must be positive", tool)
			}
		}
	}

	return nil
}

// GetConfigPath returns the first config file found: $SGFRENDER_CONFIG,
// ./config.yaml, ./config.json, then $XDG_CONFIG_HOME/sgfrender/config.yaml.
// It returns "" when there is none.
func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path
	}

	// Check current directory
	for _, name := range []string{"config.yaml", "config.json"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}

	// Check the user config directory
	configPath := filepath.Join(xdg.ConfigHome, "sgfrender", "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return ""
}
