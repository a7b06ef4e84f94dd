// Package config loads the LeetLeague server and CLI configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/leetleague/leetleague/pkg/logging"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Friend list backends.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds all LeetLeague configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	Log      LogConfig      `yaml:"log"`
	Cache    CacheConfig    `yaml:"cache"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Redis    RedisConfig    `yaml:"redis"`
	Friends  FriendsConfig  `yaml:"friends"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CacheConfig controls the in-process request cache.
type CacheConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// UpstreamConfig describes how LeetCode and the proxy are reached.
type UpstreamConfig struct {
	GraphQLURL     string        `yaml:"graphql_url"`
	ProxyURL       string        `yaml:"proxy_url"`
	UserAgent      string        `yaml:"user_agent"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// ProxyConfig controls the proxy endpoint.
type ProxyConfig struct {
	// SharedTTL enables the Redis response cache when positive
	SharedTTL time.Duration `yaml:"shared_ttl"`
}

// RedisConfig locates the Redis server. Addr may be host:port or a
// redis:// URL.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// FriendsConfig selects the friend list store.
type FriendsConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	Key        string `yaml:"key"`
	// Verify checks new usernames against LeetCode before adding
	Verify bool `yaml:"verify"`
}

// CatalogConfig locates the generated question catalog.
type CatalogConfig struct {
	DataDir string `yaml:"data_dir"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			Capacity: 500,
			TTL:      5 * time.Minute,
		},
		Upstream: UpstreamConfig{
			GraphQLURL:     "https://leetcode.com/graphql",
			ProxyURL:       "http://localhost:8080/api/leetcode",
			UserAgent:      "LeetCode-Friends-Tracker/1.0",
			Timeout:        15 * time.Second,
			MaxConcurrency: 5,
		},
		Proxy: ProxyConfig{
			SharedTTL: time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Friends: FriendsConfig{
			Backend:    BackendRedis,
			SQLitePath: "leetleague.db",
			Key:        "leetleague:friends",
			Verify:     true,
		},
		Catalog: CatalogConfig{
			DataDir: "data",
		},
	}
}

// Load reads a YAML config file, expands environment variables and applies
// environment overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("LEETLEAGUE_LISTEN"); v != "" {
		c.Listen = v
	} else if v := getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("USER_AGENT"); v != "" {
		c.Upstream.UserAgent = v
	}
	if v := getenv("LEETLEAGUE_PROXY_URL"); v != "" {
		c.Upstream.ProxyURL = v
	}
	if v := getenv("LEETLEAGUE_DATA_DIR"); v != "" {
		c.Catalog.DataDir = v
	}
	if v := getenv("LEETLEAGUE_FRIENDS_BACKEND"); v != "" {
		c.Friends.Backend = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.Log.Pretty = pretty
	}
	return nil
}

// LoggingConfig converts the log section for logging.Setup.
func (c *Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.LogLevel(c.Log.Level)
	lc.Pretty = c.Log.Pretty
	return lc
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	if c.Cache.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if strings.TrimSpace(c.Upstream.UserAgent) == "" {
		errs = append(errs, errors.New("upstream.user_agent is required"))
	}
	if c.Upstream.GraphQLURL == "" {
		errs = append(errs, errors.New("upstream.graphql_url is required"))
	}
	if c.Upstream.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("upstream.max_concurrency must be positive, got %d", c.Upstream.MaxConcurrency))
	}
	if c.Proxy.SharedTTL < 0 {
		errs = append(errs, fmt.Errorf("proxy.shared_ttl must not be negative, got %s", c.Proxy.SharedTTL))
	}

	switch c.Friends.Backend {
	case BackendRedis:
	case BackendSQLite:
		if c.Friends.SQLitePath == "" {
			errs = append(errs, errors.New("friends.sqlite_path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown friends.backend %q", c.Friends.Backend))
	}

	if _, err := c.RedisOptions(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// RedisOptions builds go-redis options from the Redis section.
func (c *Config) RedisOptions() (*redis.Options, error) {
	addr := c.Redis.Addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("redis.addr: %w", err)
		}
		return opts, nil
	}
	if addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	return &redis.Options{
		Addr:     addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}, nil
}
