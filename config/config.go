package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// dsnPasswordPlaceholder is the template value shipped in .env.example;
// a DSN still containing it has never been configured.
const dsnPasswordPlaceholder = "<db_password>"

// ErrDatabaseNotConfigured is returned by every store operation when the
// connection string is missing or still carries the placeholder password.
var ErrDatabaseNotConfigured = errors.New("DATABASE_DSN is missing or still contains the <db_password> placeholder")

// Config stores the application configuration.
type Config struct {
	HTTPAddr    string
	DatabaseDSN string // single MySQL connection string, provided out-of-process

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	MaxUploadBytes int64

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvInt64 gets an environment variable as int64 or returns a default value.
func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or
// defaults. godotenv.Load does not override variables already set in the
// environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseDSN: os.Getenv("DATABASE_DSN"), // no default: absence must fail fast, not fall back

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "beatvault"),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 100<<20),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// ValidateDSN reports whether the connection string is usable. It is checked
// on every store access so a fixed environment takes effect without special
// handling.
func (c *Config) ValidateDSN() error {
	if c.DatabaseDSN == "" || strings.Contains(c.DatabaseDSN, dsnPasswordPlaceholder) {
		return ErrDatabaseNotConfigured
	}
	return nil
}
