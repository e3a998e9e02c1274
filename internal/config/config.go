package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string
	// Database
	SQLiteDBPath string
	// Optional JSON file of ledgers loaded into the memory backend
	SeedFile string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets journal
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Exchange rates
	RatesBaseURL  string
	RatesCacheTTL time.Duration

	// Ledger engine
	DefaultCurrency   string
	RecurringSchedule string
	RecurringCutoff   string
	RetryAttempts     int

	// HTTP
	WritesPerMinute int

	// Worker
	DedupCacheSize int
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bilancio.db"),
		SeedFile:     getEnv("LEDGER_SEED_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bilancio"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Journal"),

		RatesBaseURL:  getEnv("RATES_BASE_URL", "https://open.er-api.com/v6/latest"),
		RatesCacheTTL: getEnvDuration("RATES_CACHE_TTL", time.Hour),

		DefaultCurrency:   strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		RecurringSchedule: getEnv("RECURRING_SCHEDULE", "5 0 * * *"),
		RecurringCutoff:   getEnv("RECURRING_CUTOFF", "month"),
		RetryAttempts:     getEnvInt("RETRY_ATTEMPTS", 3),

		WritesPerMinute: getEnvInt("WRITES_PER_MINUTE", 120),

		DedupCacheSize: getEnvInt("DEDUP_CACHE_SIZE", 1000),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "memory":
		if c.SeedFile != "" {
			if _, err := os.Stat(c.SeedFile); err != nil {
				errors = append(errors, fmt.Sprintf("ledger seed file not readable: %s", c.SeedFile))
			}
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RatesBaseURL != "" {
		if u, err := url.Parse(c.RatesBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid rates URL '%s': must be http or https", c.RatesBaseURL))
		}
	}
	if c.RatesCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rates cache TTL %v: must be at least 1 minute", c.RatesCacheTTL))
	}

	if len(c.DefaultCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid default currency '%s': must be a 3-letter code", c.DefaultCurrency))
	}

	if _, err := cron.ParseStandard(c.RecurringSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid recurring schedule '%s': %v", c.RecurringSchedule, err))
	}
	switch c.RecurringCutoff {
	case "", "month", "day":
	default:
		errors = append(errors, fmt.Sprintf("invalid recurring cutoff '%s': must be 'month' or 'day'", c.RecurringCutoff))
	}

	if c.RetryAttempts < 1 || c.RetryAttempts > 10 {
		errors = append(errors, fmt.Sprintf("invalid retry attempts %d: must be between 1 and 10", c.RetryAttempts))
	}
	if c.WritesPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid writes per minute %d: must not be negative", c.WritesPerMinute))
	}
	if c.DedupCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid dedup cache size %d: must be at least 1", c.DedupCacheSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
