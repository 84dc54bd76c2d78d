package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"

	defaultSessionSecret = "dev-secret-key-change-in-production"
)

type Config struct {
	Env     string
	Server  ServerConfig
	Worker  WorkerConfig
	DB      DatabaseConfig
	Session SessionConfig
	School  SchoolConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host             string
	Port             int
	CORSAllowOrigins []string
	// LoginRateLimit is the number of login attempts allowed per minute per client.
	LoginRateLimit int
	ItemsPerPage   int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type SessionConfig struct {
	Secret string
	MaxAge time.Duration
	Secure bool
}

type SchoolConfig struct {
	Name     string
	Address  string
	Phone    string
	Currency string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", EnvDevelopment)
	cfg := &Config{
		Env: env,
		Server: ServerConfig{
			Host:             getEnv("SERVER_HOST", "localhost"),
			Port:             getEnvInt("SERVER_PORT", 8080),
			CORSAllowOrigins: getEnvList("CORS_ALLOW_ORIGINS", nil),
			LoginRateLimit:   getEnvInt("LOGIN_RATE_LIMIT", 10),
			ItemsPerPage:     getEnvInt("ITEMS_PER_PAGE", 50),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 100),
		},
		DB: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			DSN:             getEnv("DB_DSN", "./data/school-finance.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 280*time.Second),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", defaultSessionSecret),
			MaxAge: getEnvDuration("SESSION_MAX_AGE", 24*time.Hour),
			Secure: env == EnvProduction,
		},
		School: SchoolConfig{
			Name:     getEnv("SCHOOL_NAME", "Jamhuri Secondary School"),
			Address:  getEnv("SCHOOL_ADDRESS", "P.O. Box 12345, Nairobi, Kenya"),
			Phone:    getEnv("SCHOOL_PHONE", "+254 700 123 456"),
			Currency: getEnv("CURRENCY", "KSh"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if env == EnvTesting {
		cfg.DB.Driver = "sqlite"
		cfg.DB.DSN = ":memory:"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		return fmt.Errorf("invalid APP_ENV: %s", c.Env)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.DB.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("invalid DB_DRIVER: %s", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Worker.BufferSize < 0 {
		return fmt.Errorf("worker buffer size must not be negative")
	}
	if c.Server.ItemsPerPage < 1 {
		return fmt.Errorf("items per page must be at least 1")
	}
	if c.Server.LoginRateLimit < 1 {
		return fmt.Errorf("login rate limit must be at least 1")
	}
	if c.Session.MaxAge < time.Minute {
		return fmt.Errorf("session max age must be at least 1 minute")
	}

	if c.Env == EnvProduction && (c.Session.Secret == defaultSessionSecret || len(c.Session.Secret) < 32) {
		return fmt.Errorf("SESSION_SECRET must be set to at least 32 characters in production")
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
