// Package config loads runtime settings from a .env file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendBigQuery = "bigquery"
)

type Config struct {
	Port     string
	LogLevel string

	StoreBackend string
	SQLitePath   string
	DatabaseURL  string
	BQProjectID  string
	BQDataset    string
	StoreTimeout time.Duration

	GCSBucket string

	GeminiModel   string
	OracleEnabled bool
	OracleTimeout time.Duration

	FingerprintFetchLimit int
	IncomeCategory        string
	InvestmentCategory    string
	FallbackCategory      string
	DefaultInvestmentGoal int
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	// Load .env file if present
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		SQLitePath:   getEnv("SQLITE_PATH", "budget.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		BQProjectID:  getEnv("BQ_PROJECT_ID", ""),
		BQDataset:    getEnv("BQ_DATASET", "budget"),

		GCSBucket: getEnv("GCS_BUCKET", ""),

		GeminiModel: getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		IncomeCategory:     getEnv("INCOME_CATEGORY", "Inkomen"),
		InvestmentCategory: getEnv("INVESTMENT_CATEGORY", "Investeren"),
		FallbackCategory:   getEnv("FALLBACK_CATEGORY", "Overig"),
	}

	var err error
	if cfg.OracleEnabled, err = getBool("ORACLE_ENABLED", true); err != nil {
		return cfg, err
	}
	if cfg.OracleTimeout, err = getDuration("ORACLE_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", 15*time.Second); err != nil {
		return cfg, err
	}
	if cfg.FingerprintFetchLimit, err = getInt("FINGERPRINT_FETCH_LIMIT", 10000); err != nil {
		return cfg, err
	}
	if cfg.DefaultInvestmentGoal, err = getInt("DEFAULT_INVESTMENT_GOAL", 20); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres backend")
		}
	case BackendBigQuery:
		if c.BQProjectID == "" {
			return fmt.Errorf("config: BQ_PROJECT_ID is required for the bigquery backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.FingerprintFetchLimit <= 0 {
		return fmt.Errorf("config: FINGERPRINT_FETCH_LIMIT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
