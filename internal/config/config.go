package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

type Config struct {
	// Remote API consumed by the dashboard client
	APIURL      string
	HTTPTimeout time.Duration

	// Expense listing defaults
	PageLimit        int
	DefaultSortBy    string
	DefaultSortOrder string

	// Client response cache; a zero TTL disables it
	CacheTTL  time.Duration
	CacheSize int

	// Budget gauge; empty or zero disables it
	BudgetLimit string

	// Logging
	LogLevel  string
	LogFormat string

	// Dev backend HTTP server
	Port           string
	RateLimitRPM   int
	AllowedOrigins []string

	// Dev backend database
	SQLiteDBPath   string
	MigrationsPath string

	// AMQP change events; empty URL disables them
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	cfg := &Config{
		APIURL:      getEnv("API_URL", "http://localhost:3000/api"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		PageLimit:        getEnvInt("PAGE_LIMIT", core.DefaultLimit),
		DefaultSortBy:    getEnv("DEFAULT_SORT_BY", string(core.SortByFechaHora)),
		DefaultSortOrder: getEnv("DEFAULT_SORT_ORDER", string(core.SortDesc)),

		CacheTTL:  getEnvDuration("CACHE_TTL", 30*time.Second),
		CacheSize: getEnvInt("CACHE_SIZE", 64),

		BudgetLimit: getEnv("BUDGET_LIMIT", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		Port:           getEnv("PORT", "3000"),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 120),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/gastos.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gastos"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "gastos_changes"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if parsedURL, err := url.Parse(c.APIURL); err != nil || c.APIURL == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s'", c.APIURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.HTTPTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 100ms", c.HTTPTimeout))
	} else if c.HTTPTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at most 5 minutes", c.HTTPTimeout))
	}

	if c.PageLimit < 1 || c.PageLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid page limit %d: must be between 1 and 100", c.PageLimit))
	}
	if _, err := core.ParseSortField(c.DefaultSortBy); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := core.ParseSortOrder(c.DefaultSortOrder); err != nil {
		errors = append(errors, err.Error())
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.CacheTTL > 0 && c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1 when caching is enabled", c.CacheSize))
	}

	if c.BudgetLimit != "" {
		if d, err := decimal.NewFromString(c.BudgetLimit); err != nil || d.IsNegative() {
			errors = append(errors, fmt.Sprintf("invalid budget limit '%s': must be a non-negative number", c.BudgetLimit))
		}
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitRPM < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitRPM))
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

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateStorage checks the settings only the dev backend needs and makes
// sure the database directory exists.
func (c *Config) ValidateStorage() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path cannot be empty")
	}
	dir := filepath.Dir(c.SQLiteDBPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create SQLite database directory '%s': %w", dir, err)
		}
	}
	return nil
}

// Budget returns the configured budget limit, zero when unset.
func (c *Config) Budget() decimal.Decimal {
	d, err := decimal.NewFromString(c.BudgetLimit)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DefaultFilter builds the initial expense filter from the listing settings.
func (c *Config) DefaultFilter() core.Filter {
	f := core.DefaultFilter()
	if c.PageLimit > 0 {
		f.Limit = c.PageLimit
	}
	if sortBy, err := core.ParseSortField(c.DefaultSortBy); err == nil {
		f.SortBy = sortBy
	}
	if order, err := core.ParseSortOrder(c.DefaultSortOrder); err == nil {
		f.SortOrder = order
	}
	return f
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

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
