// Package config loads the portfolio API configuration from environment
// variables and validates it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values loaded from environment variables.
type Config struct {
	// Server configuration
	ListenAddr      string        // Address to listen on (e.g., ":8080")
	RequestTimeout  time.Duration // Per-request handler deadline
	MaxRequestSize  int64         // Maximum size of incoming request bodies in bytes
	ShutdownTimeout time.Duration // Grace period for in-flight requests on shutdown
	TrustedProxies  []string      // Peers whose forwarding headers are honored: IPs, CIDRs or "*" (empty trusts none)

	// Environment
	APIEnv string // 'production', 'development' or 'test'

	// Database configuration
	DBDriver         string // sqlite, postgres or mysql
	DatabasePath     string // Path to the SQLite database file
	DatabaseURL      string // DSN for postgres/mysql
	DatabasePoolSize int    // Number of connections in the database pool

	// Admin access
	AdminAPIKey string // Bearer key for admin endpoints; plain text or a bcrypt hash

	// Assistant (remote model tier)
	OpenAIAPIKey             string        // Enables the remote tier when set
	OpenAIModel              string        // Model requested from the provider
	OpenAIAPIURL             string        // Base URL of the chat completions API
	AssistantTimeout         time.Duration // Upper bound for a single remote call
	AssistantHistoryMessages int           // Prior turns sent with each prompt
	AssistantHistoryTokens   int           // Token budget for prior turns
	AssistantMaxTokens       int           // max_tokens for the completion
	AssistantTemperature     float64       // Sampling temperature
	ProfilePath              string        // Optional YAML file with owner facts and reply pools

	// Rate limiting
	RateLimitBackend       string        // memory or redis
	RateLimitMaxKeys       int           // Upper bound on in-memory buckets
	RateLimitSweepInterval time.Duration // How often expired buckets are dropped
	RateLimitKeySecret     string        // HMAC secret for hashing client keys in Redis
	RateLimitPrefix        string        // Redis key prefix
	ContactRateLimit       int           // Contact submissions per window
	ContactRateWindow      time.Duration // Contact window
	ChatRateLimit          int           // Chat messages per window
	ChatRateWindow         time.Duration // Chat window
	RedisAddr              string        // Redis server address (e.g., "localhost:6379")
	RedisDB                int           // Redis database number

	// Email notification
	Email EmailConfig

	// Logging
	LogLevel      string // Log level (debug, info, warn, error)
	LogFormat     string // Log format (json, console)
	LogFile       string // Path to log file (empty for stdout)
	LogMaxSizeMB  int    // Rotate the log file after this many megabytes
	LogMaxBackups int    // Rotated files to keep

	// Audit logging
	AuditEnabled bool   // Record admin actions
	AuditLogFile string // Path to the JSONL audit file

	// CORS settings
	CORSAllowedOrigins []string
	CORSMaxAge         time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPath   string
}

// EmailConfig selects and configures the notification mailer.
type EmailConfig struct {
	Provider string        // none, log, smtp or http
	To       string        // Recipient of contact notifications
	From     string        // Sender address
	Timeout  time.Duration // Upper bound for one delivery attempt

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	APIURL string // HTTP email API endpoint
	APIKey string // Bearer key for the HTTP email API
}

// New creates a configuration from environment variables, applying defaults
// for anything unset, and validates the result.
func New() (*Config, error) {
	d := DefaultConfig()
	config := &Config{
		ListenAddr:      getEnvString("LISTEN_ADDR", d.ListenAddr),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", d.RequestTimeout),
		MaxRequestSize:  getEnvInt64("MAX_REQUEST_SIZE", d.MaxRequestSize),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", d.ShutdownTimeout),
		TrustedProxies:  getEnvStringSlice("TRUSTED_PROXIES", d.TrustedProxies),

		APIEnv: getEnvString("API_ENV", d.APIEnv),

		DBDriver:         strings.ToLower(getEnvString("DB_DRIVER", d.DBDriver)),
		DatabasePath:     getEnvString("DATABASE_PATH", d.DatabasePath),
		DatabaseURL:      getEnvString("DATABASE_URL", ""),
		DatabasePoolSize: getEnvInt("DATABASE_POOL_SIZE", d.DatabasePoolSize),

		AdminAPIKey: getEnvString("ADMIN_API_KEY", ""),

		OpenAIAPIKey:             getEnvString("OPENAI_API_KEY", ""),
		OpenAIModel:              getEnvString("OPENAI_MODEL", d.OpenAIModel),
		OpenAIAPIURL:             getEnvString("OPENAI_API_URL", d.OpenAIAPIURL),
		AssistantTimeout:         getEnvDuration("ASSISTANT_TIMEOUT", d.AssistantTimeout),
		AssistantHistoryMessages: getEnvInt("ASSISTANT_HISTORY_MESSAGES", d.AssistantHistoryMessages),
		AssistantHistoryTokens:   getEnvInt("ASSISTANT_HISTORY_TOKENS", d.AssistantHistoryTokens),
		AssistantMaxTokens:       getEnvInt("ASSISTANT_MAX_TOKENS", d.AssistantMaxTokens),
		AssistantTemperature:     EnvFloat64OrDefault("ASSISTANT_TEMPERATURE", d.AssistantTemperature),
		ProfilePath:              getEnvString("PROFILE_PATH", ""),

		RateLimitBackend:       strings.ToLower(getEnvString("RATE_LIMIT_BACKEND", d.RateLimitBackend)),
		RateLimitMaxKeys:       getEnvInt("RATE_LIMIT_MAX_KEYS", d.RateLimitMaxKeys),
		RateLimitSweepInterval: getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", d.RateLimitSweepInterval),
		RateLimitKeySecret:     getEnvString("RATE_LIMIT_KEY_SECRET", ""),
		RateLimitPrefix:        getEnvString("RATE_LIMIT_PREFIX", d.RateLimitPrefix),
		ContactRateLimit:       getEnvInt("CONTACT_RATE_LIMIT", d.ContactRateLimit),
		ContactRateWindow:      getEnvDuration("CONTACT_RATE_WINDOW", d.ContactRateWindow),
		ChatRateLimit:          getEnvInt("CHAT_RATE_LIMIT", d.ChatRateLimit),
		ChatRateWindow:         getEnvDuration("CHAT_RATE_WINDOW", d.ChatRateWindow),
		RedisAddr:              getEnvString("REDIS_ADDR", d.RedisAddr),
		RedisDB:                getEnvInt("REDIS_DB", d.RedisDB),

		Email: EmailConfig{
			Provider:     strings.ToLower(getEnvString("EMAIL_PROVIDER", d.Email.Provider)),
			To:           getEnvString("EMAIL_TO", ""),
			From:         getEnvString("EMAIL_FROM", d.Email.From),
			Timeout:      getEnvDuration("EMAIL_TIMEOUT", d.Email.Timeout),
			SMTPHost:     getEnvString("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", d.Email.SMTPPort),
			SMTPUsername: getEnvString("SMTP_USERNAME", ""),
			SMTPPassword: getEnvString("SMTP_PASSWORD", ""),
			APIURL:       getEnvString("EMAIL_API_URL", d.Email.APIURL),
			APIKey:       getEnvString("EMAIL_API_KEY", ""),
		},

		LogLevel:      getEnvString("LOG_LEVEL", d.LogLevel),
		LogFormat:     getEnvString("LOG_FORMAT", d.LogFormat),
		LogFile:       getEnvString("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", d.LogMaxSizeMB),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", d.LogMaxBackups),

		AuditEnabled: getEnvBool("AUDIT_ENABLED", d.AuditEnabled),
		AuditLogFile: getEnvString("AUDIT_LOG_FILE", d.AuditLogFile),

		CORSAllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", d.CORSAllowedOrigins),
		CORSMaxAge:         getEnvDuration("CORS_MAX_AGE", d.CORSMaxAge),

		EnableMetrics: getEnvBool("ENABLE_METRICS", d.EnableMetrics),
		MetricsPath:   getEnvString("METRICS_PATH", d.MetricsPath),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks enumerated settings and numeric bounds.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: must be sqlite, postgres or mysql", c.DBDriver)
	}
	if c.DBDriver != "sqlite" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", c.DBDriver)
	}

	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid RATE_LIMIT_BACKEND %q: must be memory or redis", c.RateLimitBackend)
	}
	if c.ContactRateLimit <= 0 || c.ChatRateLimit <= 0 {
		return fmt.Errorf("rate limits must be positive (contact=%d, chat=%d)", c.ContactRateLimit, c.ChatRateLimit)
	}
	if c.ContactRateWindow <= 0 || c.ChatRateWindow <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}

	switch c.Email.Provider {
	case "none", "log":
	case "smtp":
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	case "http":
		if c.Email.APIKey == "" {
			return fmt.Errorf("EMAIL_API_KEY is required when EMAIL_PROVIDER=http")
		}
	default:
		return fmt.Errorf("invalid EMAIL_PROVIDER %q: must be none, log, smtp or http", c.Email.Provider)
	}
	if c.Email.Provider != "none" && c.Email.To == "" {
		return fmt.Errorf("EMAIL_TO is required when EMAIL_PROVIDER=%s", c.Email.Provider)
	}

	if c.AssistantTimeout <= 0 {
		return fmt.Errorf("ASSISTANT_TIMEOUT must be positive")
	}
	return nil
}

// RemoteAssistantEnabled reports whether the remote model tier is configured.
func (c *Config) RemoteAssistantEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// getEnvString retrieves a string value from an environment variable,
// falling back to the provided default value if the variable is not set.
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean value from an environment variable,
// falling back to the provided default value if the variable is not set
// or cannot be parsed as a boolean.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		parsedValue, err := strconv.ParseBool(value)
		if err == nil {
			return parsedValue
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		parsedValue, err := strconv.Atoi(value)
		if err == nil {
			return parsedValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		parsedValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsedValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("15m", "8s").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		parsedValue, err := time.ParseDuration(value)
		if err == nil {
			return parsedValue
		}
	}
	return defaultValue
}

// getEnvStringSlice splits a comma-separated variable, trimming each entry.
func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		RequestTimeout:  30 * time.Second,
		MaxRequestSize:  64 * 1024,
		ShutdownTimeout: 30 * time.Second,
		TrustedProxies:  nil,

		APIEnv: "development",

		DBDriver:         "sqlite",
		DatabasePath:     "./data/portfolio.db",
		DatabasePoolSize: 10,

		OpenAIModel:              "gpt-4o-mini",
		OpenAIAPIURL:             "https://api.openai.com",
		AssistantTimeout:         8 * time.Second,
		AssistantHistoryMessages: 6,
		AssistantHistoryTokens:   1500,
		AssistantMaxTokens:       300,
		AssistantTemperature:     0.7,

		RateLimitBackend:       "memory",
		RateLimitMaxKeys:       100000,
		RateLimitSweepInterval: time.Minute,
		RateLimitPrefix:        "ratelimit:",
		ContactRateLimit:       5,
		ContactRateWindow:      15 * time.Minute,
		ChatRateLimit:          20,
		ChatRateWindow:         time.Minute,
		RedisAddr:              "localhost:6379",

		Email: EmailConfig{
			Provider: "none",
			From:     "Portfolio <noreply@localhost>",
			Timeout:  10 * time.Second,
			SMTPPort: 587,
			APIURL:   "https://api.resend.com/emails",
		},

		LogLevel:      "info",
		LogFormat:     "json",
		LogMaxSizeMB:  10,
		LogMaxBackups: 5,

		AuditEnabled: true,
		AuditLogFile: "./data/audit.log",

		CORSAllowedOrigins: []string{"*"},
		CORSMaxAge:         24 * time.Hour,

		EnableMetrics: true,
		MetricsPath:   "/metrics",
	}
}
