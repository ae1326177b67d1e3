package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

type Config struct {
	// Firefly III
	FireflyURL   string
	FireflyToken string

	// Logging
	LogLevel  string
	LogFormat string

	// Import ledger
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets source
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Import defaults
	ImportSourceAccount string
	ImportCurrency      string
	ImportApplyRules    bool

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration
	MetricsAddr   string

	// malformed typed values seen by Load, reported by Validate
	parseErrors []string
}

func Load() *Config {
	var parseErrors []string
	c := &Config{
		FireflyURL:   getEnv("FIREFLY_URL", ""),
		FireflyToken: getEnv("FIREFLY_TOKEN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fireflyiii.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fireflyiii"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "store_transactions"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		ImportSourceAccount: getEnv("IMPORT_SOURCE_ACCOUNT", ""),
		ImportCurrency:      getEnv("IMPORT_CURRENCY", ""),
		ImportApplyRules:    getEnvBool("IMPORT_APPLY_RULES", true, &parseErrors),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10, &parseErrors),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second, &parseErrors),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
	}
	c.parseErrors = parseErrors
	return c
}

// Validate validates the settings every command needs: the Firefly III
// connection, logging and worker limits. Optional integrations are checked
// only when configured.
func (c *Config) Validate() error {
	errors := append([]string(nil), c.parseErrors...)

	// Firefly III connection
	if c.FireflyURL == "" {
		errors = append(errors, "FIREFLY_URL is required")
	} else if u, err := url.Parse(c.FireflyURL); err != nil || !u.IsAbs() || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid Firefly URL '%s': must be an absolute http(s) URL", c.FireflyURL))
	}
	if c.FireflyToken == "" {
		errors = append(errors, "FIREFLY_TOKEN is required")
	}

	// Logging
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if f := strings.ToLower(c.LogFormat); f != "" && f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Validate AMQP URL if provided
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

	// Check the service account file only when one is named
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.ImportCurrency != "" && len(c.ImportCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid import currency '%s': must be a 3 letter code", c.ImportCurrency))
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateSheets checks the settings the Google Sheets source needs.
func (c *Config) ValidateSheets() error {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the sheet source")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME is required for the sheet source")
	}
	if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheet source")
	}
	if len(errors) > 0 {
		return fmt.Errorf("sheet source configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// EnsureDataDir creates the directory holding the SQLite ledger.
func (c *Config) EnsureDataDir() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path cannot be empty")
	}
	dir := filepath.Dir(c.SQLiteDBPath)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create SQLite database directory '%s': %w", dir, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]string) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid %s '%s': must be an integer", key, value))
		return defaultValue
	}
	return i
}

func getEnvBool(key string, defaultValue bool, errs *[]string) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid %s '%s': must be true or false", key, value))
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go durations plus day and week units ("1d12h").
func getEnvDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := str2duration.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid %s '%s': %v", key, value, err))
		return defaultValue
	}
	return d
}
