// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Log      LogConfig
	App      AppConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int // seconds
	WriteTimeout       int // seconds
	IdleTimeout        int // seconds
	LoginRatePerMinute int
}

// DatabaseConfig selects the gorm driver and its connection settings.
type DatabaseConfig struct {
	Driver        string // postgres | sqlite
	URL           string // takes precedence over the discrete fields
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	SQLitePath    string
	Migrations    bool // run SQL migrations instead of AutoMigrate
	MigrationsDir string
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	CacheTTL  time.Duration
}

// RedisConfig enables the shared token revocation store when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig enables presigned uploads when Bucket is set.
type StorageConfig struct {
	Bucket    string
	Region    string
	Endpoint  string // S3-compatible services such as MinIO
	URLExpiry time.Duration
}

// LogConfig drives the logrus logger.
type LogConfig struct {
	Level  string
	Format string // text | json
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev               bool
	Seed              bool
	SeedAdminEmail    string
	SeedAdminPassword string
	SentryDSN         string
	ProgressFloor     int
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// MigrateURL returns the URL form golang-migrate expects.
func (d DatabaseConfig) MigrateURL() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:       getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:        getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 5),
		},
		Database: DatabaseConfig{
			Driver:        strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			URL:           getEnv("DATABASE_URL", ""),
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "archive"),
			Password:      getEnv("DB_PASSWORD", "archive"),
			DBName:        getEnv("DB_NAME", "archive"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			SQLitePath:    getEnv("SQLITE_PATH", "archive.db"),
			Migrations:    getEnvBool("MIGRATIONS", false),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),
			CacheTTL:  getEnvDuration("SUBJECT_CACHE_TTL", time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Bucket:    getEnv("S3_BUCKET", ""),
			Region:    getEnv("AWS_REGION", "us-east-1"),
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			URLExpiry: getEnvDuration("UPLOAD_URL_EXPIRY", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		App: AppConfig{
			Dev:               getEnvBool("DEV", true),
			Seed:              getEnvBool("DB_SEED", false),
			SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@archive.local"),
			SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
			SentryDSN:         getEnv("SENTRY_DSN", ""),
			ProgressFloor:     getEnvInt("WORKFLOW_PROGRESS_FLOOR", 1),
		},
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if !c.App.Dev {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		c.Auth.JWTSecret = "dev-only-secret"
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.App.ProgressFloor != 0 && c.App.ProgressFloor != 1 {
		return fmt.Errorf("WORKFLOW_PROGRESS_FLOOR must be 0 or 1, got %d", c.App.ProgressFloor)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses values such as "15m" or "24h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
