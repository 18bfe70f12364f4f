package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Worker   WorkerConfig
	Calendar CalendarConfig
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	ReleaseMode    bool
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type SecurityConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	// Bootstrap admin created at startup when no user has this email.
	AdminEmail    string
	AdminPassword string
}

type LoggingConfig struct {
	Level       string
	Development bool
}

// WorkerConfig drives the periodic status refresher in cmd/worker.
type WorkerConfig struct {
	StatusRefreshCron string
}

type CalendarConfig struct {
	Timezone string
}

const devJWTSecret = "default_super_secret_key"

// Load builds the configuration from defaults, an optional dotenv file and
// the process environment, in that order of precedence.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "postgres",
			Password:     "postgres",
			DBName:       "licitacao",
			SSLMode:      "disable",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Worker: WorkerConfig{
			StatusRefreshCron: "0 */15 * * * *",
		},
		Calendar: CalendarConfig{
			Timezone: "America/Sao_Paulo",
		},
	}

	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Security.JWTSecret == "" {
		if cfg.Server.ReleaseMode {
			return nil, errors.New("JWT_SECRET environment variable is required in release mode")
		}
		cfg.Security.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func overrideWithEnv(cfg *Config) error {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt("PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	cfg.Server.ReleaseMode = os.Getenv("GIN_MODE") == "release"

	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if err := envInt("DB_PORT", &cfg.Database.Port); err != nil {
		return err
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if err := envInt("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns); err != nil {
		return err
	}
	if err := envInt("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns); err != nil {
		return err
	}

	cfg.Security.JWTSecret = os.Getenv("JWT_SECRET")
	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_TTL %q: %w", v, err)
		}
		cfg.Security.TokenTTL = d
	}

	cfg.Security.AdminEmail = os.Getenv("ADMIN_EMAIL")
	cfg.Security.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_DEVELOPMENT %q: %w", v, err)
		}
		cfg.Logging.Development = b
	}

	if v := os.Getenv("STATUS_REFRESH_CRON"); v != "" {
		cfg.Worker.StatusRefreshCron = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.Calendar.Timezone = v
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location resolves the configured timezone, falling back to UTC.
func (c *CalendarConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
