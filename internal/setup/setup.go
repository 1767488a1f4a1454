// Package setup writes a starter .env file for the API.
package setup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sofatutor/portfolio-api/internal/auth"
)

// Options are the values collected by the setup command.
type Options struct {
	EnvPath      string
	ListenAddr   string
	DatabasePath string
	OpenAIAPIKey string
	EmailTo      string
	EmailFrom    string
	// TrustedProxies lists the reverse proxies whose X-Forwarded-For is
	// honored. Leave empty when the server is reachable directly.
	TrustedProxies string
	// AdminKey is generated when empty.
	AdminKey   string
	BcryptCost int
	Overwrite  bool
}

// Result reports what was written. AdminKey is the clear-text key; only its
// hash is stored in the file.
type Result struct {
	Path     string
	AdminKey string
	Values   map[string]string
}

// Validate checks required fields.
func (o *Options) Validate() error {
	if o.EnvPath == "" {
		return errors.New("env path is required")
	}
	if o.DatabasePath == "" {
		return errors.New("database path is required")
	}
	if o.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	return nil
}

// Values returns the environment entries for o. adminHash is the stored
// form of the admin key.
func (o *Options) Values(adminHash string) map[string]string {
	values := map[string]string{
		"LISTEN_ADDR":    o.ListenAddr,
		"DB_DRIVER":      "sqlite",
		"DATABASE_PATH":  o.DatabasePath,
		"ADMIN_API_KEY":  adminHash,
		"LOG_LEVEL":      "info",
		"EMAIL_PROVIDER": "none",
	}
	if o.OpenAIAPIKey != "" {
		values["OPENAI_API_KEY"] = o.OpenAIAPIKey
	}
	if o.EmailTo != "" {
		values["EMAIL_PROVIDER"] = "log"
		values["EMAIL_TO"] = o.EmailTo
	}
	if o.EmailFrom != "" {
		values["EMAIL_FROM"] = o.EmailFrom
	}
	if o.TrustedProxies != "" {
		values["TRUSTED_PROXIES"] = o.TrustedProxies
	}
	return values
}

// Run validates o, hashes (or generates) the admin key and writes the file
// with 0600 permissions. An existing file is kept unless Overwrite is set.
func Run(o Options) (Result, error) {
	if err := o.Validate(); err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(o.EnvPath); err == nil && !o.Overwrite {
		return Result{}, fmt.Errorf("%s already exists", o.EnvPath)
	}

	key := o.AdminKey
	if key == "" {
		generated, err := auth.GenerateKey(24)
		if err != nil {
			return Result{}, fmt.Errorf("failed to generate admin key: %w", err)
		}
		key = generated
	}
	hashed, err := auth.HashKey(key, o.BcryptCost)
	if err != nil {
		return Result{}, err
	}

	for _, dir := range []string{filepath.Dir(o.EnvPath), filepath.Dir(o.DatabasePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	values := o.Values(hashed)
	if err := godotenv.Write(values, o.EnvPath); err != nil {
		return Result{}, fmt.Errorf("failed to write %s: %w", o.EnvPath, err)
	}
	if err := os.Chmod(o.EnvPath, 0o600); err != nil {
		return Result{}, fmt.Errorf("failed to restrict %s: %w", o.EnvPath, err)
	}
	return Result{Path: o.EnvPath, AdminKey: key, Values: values}, nil
}
