// Package config loads the application configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/rankforum/internal/infrastructure/db"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig holds the score-cache settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Enabled  bool          `yaml:"enabled"`
}

// LimitsConfig holds request-shaping knobs.
type LimitsConfig struct {
	VotesPerSecond float64 `yaml:"votes_per_second"`
	VoteBurst      int     `yaml:"vote_burst"`
	MaxBodyBytes   int64   `yaml:"max_body_bytes"`
}

// AppConfig is the root configuration document.
type AppConfig struct {
	Server   ServerConfig `yaml:"server"`
	Database db.Config    `yaml:"database"`
	Redis    RedisConfig  `yaml:"redis"`
	Limits   LimitsConfig `yaml:"limits"`
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: db.DefaultConfig(),
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			DB:      0,
			TTL:     30 * time.Second,
			Enabled: false,
		},
		Limits: LimitsConfig{
			VotesPerSecond: 10,
			VoteBurst:      20,
			MaxBodyBytes:   1 << 20,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*AppConfig, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(c)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func applyEnv(c *AppConfig) {
	if addr := os.Getenv("RANKFORUM_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		c.Database.DSN = dsn
		c.Database.Enabled = true
	}
	if enabled := os.Getenv("PG_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			c.Database.Enabled = v
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
		c.Redis.Enabled = true
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if dbn := os.Getenv("REDIS_DB"); dbn != "" {
		if v, err := strconv.Atoi(dbn); err == nil {
			c.Redis.DB = v
		}
	}
}

// Validate rejects configurations the server cannot start with.
func (c *AppConfig) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn required when database is enabled")
	}
	if c.Limits.VotesPerSecond <= 0 {
		return fmt.Errorf("limits.votes_per_second must be positive")
	}
	if c.Limits.VoteBurst <= 0 {
		return fmt.Errorf("limits.vote_burst must be positive")
	}
	return nil
}
