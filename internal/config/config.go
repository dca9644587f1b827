// Package config loads the ctgov-mcp configuration from defaults, an
// optional YAML file, an optional .env file and CTGOV_* environment
// variables, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/cache"
	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is read when present in the working directory.
const DefaultEnvFile = ".env"

// Config is the complete process configuration.
type Config struct {
	Client    ClientConfig                            `yaml:"client"`
	Cache     map[cache.Category]cache.PartitionConfig `yaml:"cache"`
	RateLimit RateLimitConfig                         `yaml:"rate_limit"`
	Logging   LoggingConfig                           `yaml:"logging"`
	Server    ServerConfig                            `yaml:"server"`
}

// ClientConfig mirrors client.Config for the file format.
type ClientConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	MaxRetries    int           `yaml:"max_retries"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
	Jitter        float64       `yaml:"jitter"`
}

// RateLimitConfig selects where the shared cooldown lives. An empty
// RedisAddr keeps it in process memory.
type RateLimitConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPassword string `yaml:"redis_password"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig holds MCP server settings. An empty HTTPAddr serves stdio.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cc := client.DefaultConfig()
	return &Config{
		Client: ClientConfig{
			BaseURL:       cc.BaseURL,
			Timeout:       cc.Timeout,
			UserAgent:     cc.UserAgent,
			MaxRetries:    cc.MaxRetries,
			BackoffBase:   cc.BackoffBase,
			BackoffFactor: cc.BackoffFactor,
			MaxBackoff:    cc.MaxBackoff,
			Jitter:        cc.Jitter,
		},
		Cache: cache.DefaultPartitions(),
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load builds the configuration. A missing YAML file or .env file is not
// an error; a malformed one is.
func Load(path string) (*Config, error) {
	return load(path, DefaultEnvFile, os.LookupEnv)
}

func load(path, envFile string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		default:
			dotenv = vars
		}
	}

	// Process environment wins over .env
	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnvOverrides(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies CTGOV_* variables.
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := cast.ToDurationE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := cast.ToBoolE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("CTGOV_BASE_URL", &c.Client.BaseURL)
	dur("CTGOV_TIMEOUT", &c.Client.Timeout)
	str("CTGOV_USER_AGENT", &c.Client.UserAgent)
	integer("CTGOV_MAX_RETRIES", &c.Client.MaxRetries)
	dur("CTGOV_BACKOFF_BASE", &c.Client.BackoffBase)
	float("CTGOV_BACKOFF_FACTOR", &c.Client.BackoffFactor)
	dur("CTGOV_MAX_BACKOFF", &c.Client.MaxBackoff)
	float("CTGOV_JITTER", &c.Client.Jitter)

	str("CTGOV_REDIS_ADDR", &c.RateLimit.RedisAddr)
	integer("CTGOV_REDIS_DB", &c.RateLimit.RedisDB)
	str("CTGOV_REDIS_PASSWORD", &c.RateLimit.RedisPassword)

	str("CTGOV_LOG_LEVEL", &c.Logging.Level)
	boolean("CTGOV_LOG_PRETTY", &c.Logging.Pretty)

	str("CTGOV_HTTP_ADDR", &c.Server.HTTPAddr)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

// ClientConfig converts to a client.Config. The rate limit store is left
// for the caller to attach.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:       c.Client.BaseURL,
		Timeout:       c.Client.Timeout,
		UserAgent:     c.Client.UserAgent,
		MaxRetries:    c.Client.MaxRetries,
		BackoffBase:   c.Client.BackoffBase,
		BackoffFactor: c.Client.BackoffFactor,
		MaxBackoff:    c.Client.MaxBackoff,
		Jitter:        c.Client.Jitter,
		Partitions:    c.Cache,
	}
}

// LoggingConfig converts to a logging.Config writing to stderr.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}

// RedisOptions returns the Redis connection options, or nil when no Redis
// address is configured.
func (c *Config) RedisOptions() *redis.Options {
	if c.RateLimit.RedisAddr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.RateLimit.RedisAddr,
		DB:       c.RateLimit.RedisDB,
		Password: c.RateLimit.RedisPassword,
	}
}
