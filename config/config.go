package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Scoring  ScoringPolicy
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
	MaxFileSize int64
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ScoringPolicy holds the category weights, verdict thresholds and the
// critical-failure capping switch. Built once at startup and passed by
// reference; never mutated afterwards.
type ScoringPolicy struct {
	GSTINWeight         int
	InvoiceFormatWeight int
	DateWeight          int
	PlaceOfSupplyWeight int
	HSNWeight           int
	ArithmeticWeight    int
	DuplicateWeight     int

	PassThreshold   int
	ReviewThreshold int

	// When set, a FAIL in a critical category (GSTIN checksum, duplicate)
	// caps the verdict at REVIEW regardless of the aggregate score.
	CapOnCriticalFail bool
}

// DefaultScoringPolicy returns the documented weight table (sums to 100).
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		GSTINWeight:         25,
		InvoiceFormatWeight: 15,
		DateWeight:          10,
		PlaceOfSupplyWeight: 5,
		HSNWeight:           5,
		ArithmeticWeight:    30,
		DuplicateWeight:     10,
		PassThreshold:       80,
		ReviewThreshold:     50,
		CapOnCriticalFail:   true,
	}
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	scoring := DefaultScoringPolicy()
	scoring.CapOnCriticalFail = getEnvBool("VERDICT_CAP_ON_CRITICAL_FAIL", true)

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
			MaxFileSize: 10 * 1024 * 1024, // 10 MB
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("DUPLICATE_STORE_ENABLED", true),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "gst"),
			Password: getEnv("DB_PASSWORD", "gst"),
			DBName:   getEnv("DB_NAME", "gst_invoices"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Scoring: scoring,
	}

	return cfg, nil
}

// DSN builds the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid boolean for %s: %q, using default", key, value)
		return fallback
	}
	return parsed
}
