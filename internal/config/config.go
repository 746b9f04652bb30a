// Package config provides configuration management for the campus sync service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Vault    VaultConfig
	Sync     SyncConfig
	Cache    CacheConfig
	Portal   PortalConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// VaultConfig holds credential encryption configuration.
// Key must be exactly 64 hex characters (32 bytes, AES-256).
type VaultConfig struct {
	EncryptionKey string
}

// SyncConfig holds sync orchestration configuration
type SyncConfig struct {
	SyncWorkers         int
	NotificationWorkers int
	MaxAttempts         int
	RetryDelays         []time.Duration
	FailureThreshold    int
	ScheduleInterval    time.Duration
	AttendanceThreshold float64
}

// CacheConfig holds read-cache TTL configuration
type CacheConfig struct {
	AttendanceTTL        time.Duration
	TimetableTTL         time.Duration
	MarksTTL             time.Duration
	CoursesTTL           time.Duration
	ProfileTTL           time.Duration
	NotificationCountTTL time.Duration
}

// PortalConfig holds the MyCampus portal adapter settings
type PortalConfig struct {
	MyCampusBaseURL string
	MyCampusOrigin  string
	RequestsPerSec  float64
	RequestTimeout  time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "campus_sync"),
				User:           getEnv("POSTGRES_USER", "campus"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Vault: VaultConfig{
			EncryptionKey: getEnv("CREDENTIAL_ENCRYPTION_KEY", ""),
		},
		Sync: SyncConfig{
			SyncWorkers:         getEnvAsInt("SYNC_WORKERS", 5),
			NotificationWorkers: getEnvAsInt("NOTIFICATION_WORKERS", 10),
			MaxAttempts:         getEnvAsInt("SYNC_MAX_ATTEMPTS", 3),
			RetryDelays:         getEnvAsDurations("SYNC_RETRY_DELAYS", []time.Duration{1 * time.Minute, 5 * time.Minute, 15 * time.Minute}),
			FailureThreshold:    getEnvAsInt("SYNC_FAILURE_THRESHOLD", 5),
			ScheduleInterval:    getEnvAsDuration("SYNC_SCHEDULE_INTERVAL", 12*time.Hour),
			AttendanceThreshold: getEnvAsFloat("ATTENDANCE_THRESHOLD", 75.0),
		},
		Cache: CacheConfig{
			AttendanceTTL:        getEnvAsDuration("CACHE_ATTENDANCE_TTL", 30*time.Minute),
			TimetableTTL:         getEnvAsDuration("CACHE_TIMETABLE_TTL", 6*time.Hour),
			MarksTTL:             getEnvAsDuration("CACHE_MARKS_TTL", time.Hour),
			CoursesTTL:           getEnvAsDuration("CACHE_COURSES_TTL", 24*time.Hour),
			ProfileTTL:           getEnvAsDuration("CACHE_PROFILE_TTL", 30*time.Minute),
			NotificationCountTTL: getEnvAsDuration("CACHE_NOTIFICATION_COUNT_TTL", 5*time.Minute),
		},
		Portal: PortalConfig{
			MyCampusBaseURL: getEnv("MYCAMPUS_BASE_URL", ""),
			MyCampusOrigin:  getEnv("MYCAMPUS_ORIGIN", ""),
			RequestsPerSec:  getEnvAsFloat("PORTAL_REQUESTS_PER_SECOND", 3),
			RequestTimeout:  getEnvAsDuration("PORTAL_REQUEST_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration invariants that would otherwise surface as
// runtime failures deep inside the sync pipeline.
func (c *Config) Validate() error {
	if c.Vault.EncryptionKey != "" && len(c.Vault.EncryptionKey) != 64 {
		return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must be 64 hex characters (32 bytes), got %d", len(c.Vault.EncryptionKey))
	}
	if c.Sync.SyncWorkers <= 0 {
		return fmt.Errorf("SYNC_WORKERS must be positive, got %d", c.Sync.SyncWorkers)
	}
	if c.Sync.NotificationWorkers <= 0 {
		return fmt.Errorf("NOTIFICATION_WORKERS must be positive, got %d", c.Sync.NotificationWorkers)
	}
	if c.Sync.MaxAttempts <= 0 {
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be positive, got %d", c.Sync.MaxAttempts)
	}
	if c.Sync.FailureThreshold <= 0 {
		return fmt.Errorf("SYNC_FAILURE_THRESHOLD must be positive, got %d", c.Sync.FailureThreshold)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDurations gets a comma-separated list of durations, e.g. "1m,5m,15m"
func getEnvAsDurations(key string, defaultValue []time.Duration) []time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		value, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		values = append(values, value)
	}
	return values
}
