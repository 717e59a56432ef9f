// Package config loads the process-wide configuration.
//
// Load is called exactly once at startup. The returned value is passed into
// constructors and never mutated afterwards; the signing key and database
// credentials in particular are fixed for the life of the process.
//
// Precedence, lowest to highest: built-in defaults, the YAML file, then
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultTokenTTL is how long an issued token stays valid (10 days).
	DefaultTokenTTL = 240 * time.Hour
)

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Auth     Auth     `yaml:"auth"`
	Redis    Redis    `yaml:"redis"`
	Log      Log      `yaml:"log"`
	CORS     CORS     `yaml:"cors"`
}

type Server struct {
	Port            int    `yaml:"port"`
	ShutdownTimeout string `yaml:"shutdownTimeout"`
}

type Database struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	Path   string `yaml:"path"`   // sqlite file, ":memory:" allowed
	URL    string `yaml:"url"`    // postgres connection string
}

type Auth struct {
	JWTSecret  string `yaml:"jwtSecret"`
	TokenTTL   string `yaml:"tokenTTL"`
	BcryptCost int    `yaml:"bcryptCost"`
}

// Redis is optional. An empty Addr disables the quiz catalog cache.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// Default returns the configuration used when no file or env overrides are
// present. It has no JWT secret, so it does not pass Validate on its own.
func Default() Config {
	return Config{
		Server: Server{
			Port:            8080,
			ShutdownTimeout: "30s",
		},
		Database: Database{
			Driver: DriverSQLite,
			Path:   "data/disaster-ready.db",
		},
		Auth: Auth{
			TokenTTL:   DefaultTokenTTL.String(),
			BcryptCost: 12,
		},
		Redis: Redis{
			TTL: "10m",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		CORS: CORS{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment. A missing file is not an error when path is empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("DB_DRIVER"); ok && v != "" {
		cfg.Database.Driver = v
	}
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		cfg.Database.Path = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		cfg.Database.URL = v
	}
	if v, ok := lookup("JWT_SECRET"); ok && v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v, ok := lookup("TOKEN_TTL"); ok && v != "" {
		cfg.Auth.TokenTTL = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		cfg.Log.Format = v
	}
	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.CORS.AllowedOrigins = strings.Split(v, ",")
	}
	return nil
}

// Validate reports the first problem that would prevent the server from
// starting.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("config: database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("config: database.url is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("config: auth.jwtSecret must be at least 16 characters")
	}
	if _, err := time.ParseDuration(c.Auth.TokenTTL); err != nil {
		return fmt.Errorf("config: auth.tokenTTL: %w", err)
	}
	if c.TokenTTL() <= 0 {
		return errors.New("config: auth.tokenTTL must be positive")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}

// TokenTTL returns the parsed token lifetime, DefaultTokenTTL if unparseable.
func (c Config) TokenTTL() time.Duration {
	return Duration(c.Auth.TokenTTL, DefaultTokenTTL)
}

func (c Config) ShutdownTimeout() time.Duration {
	return Duration(c.Server.ShutdownTimeout, 30*time.Second)
}

func (c Config) CacheTTL() time.Duration {
	return Duration(c.Redis.TTL, 10*time.Minute)
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
