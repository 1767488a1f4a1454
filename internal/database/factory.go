package database

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ConfigFromEnv creates a Config from environment variables.
// Invalid values are logged as warnings and defaults are kept.
func ConfigFromEnv(logger *zap.Logger) Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	config := DefaultConfig()

	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		switch d := DriverType(strings.ToLower(driver)); d {
		case DriverSQLite, DriverPostgres, DriverMySQL:
			config.Driver = d
		default:
			logger.Warn("unsupported DB_DRIVER, defaulting to sqlite", zap.String("value", driver))
		}
	}

	if path := os.Getenv("DATABASE_PATH"); path != "" {
		config.Path = path
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.DatabaseURL = url
	}

	if v := os.Getenv("DATABASE_POOL_SIZE"); v != "" {
		if size, err := parsePositiveInt(v); err == nil {
			config.MaxOpenConns = size
		} else {
			logger.Warn("invalid DATABASE_POOL_SIZE, using default", zap.String("value", v), zap.Int("default", config.MaxOpenConns))
		}
	}
	if v := os.Getenv("DATABASE_MAX_IDLE_CONNS"); v != "" {
		if size, err := parsePositiveInt(v); err == nil {
			config.MaxIdleConns = size
		} else {
			logger.Warn("invalid DATABASE_MAX_IDLE_CONNS, using default", zap.String("value", v), zap.Int("default", config.MaxIdleConns))
		}
	}
	if v := os.Getenv("DATABASE_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ConnMaxLifetime = d
		} else {
			logger.Warn("invalid DATABASE_CONN_MAX_LIFETIME, using default", zap.String("value", v), zap.Duration("default", config.ConnMaxLifetime))
		}
	}

	return config
}

func parsePositiveInt(s string) (int, error) {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil || i <= 0 {
		return 0, fmt.Errorf("invalid positive integer: %s", s)
	}
	return i, nil
}
