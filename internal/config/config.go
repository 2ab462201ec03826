// Package config resolves client settings from defaults, a .env file,
// VV_* environment variables and an optional YAML or JSON config file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StatusPolicy controls how a status change is reflected locally.
type StatusPolicy string

const (
	// StatusOptimistic shows the new status immediately and keeps it even if the backend rejects it.
	StatusOptimistic StatusPolicy = "optimistic"
	// StatusRollback shows the new status immediately and restores the old one on failure.
	StatusRollback StatusPolicy = "rollback"
	// StatusConfirm only shows the new status once the backend accepts it.
	StatusConfirm StatusPolicy = "confirm"
)

// Valid reports whether p is a known policy.
func (p StatusPolicy) Valid() bool {
	switch p {
	case StatusOptimistic, StatusRollback, StatusConfirm:
		return true
	default:
		return false
	}
}

const (
	DefaultServerURL  = "https://proactiveindia-e5f7bnc3gzedbzg4.centralindia-01.azurewebsites.net"
	DefaultDateLayout = "1/2/2006"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds client configuration.
type Config struct {
	ServerURL          string        `yaml:"serverURL" json:"serverURL"`
	TokenDir           string        `yaml:"tokenDir" json:"tokenDir"`
	CacheDir           string        `yaml:"cacheDir" json:"cacheDir"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries         uint          `yaml:"maxRetries" json:"maxRetries"`
	DateLayout         string        `yaml:"dateLayout" json:"dateLayout"`
	RequireAllEvidence bool          `yaml:"requireAllEvidence" json:"requireAllEvidence"`
	StatusPolicy       StatusPolicy  `yaml:"statusPolicy" json:"statusPolicy"`
	StrictTransitions  bool          `yaml:"strictTransitions" json:"strictTransitions"`
	Debug              bool          `yaml:"debug" json:"debug"`
}

// Default returns the configuration used when nothing else is set.
// Timeout zero leaves the HTTP client default in place.
func Default() Config {
	return Config{
		ServerURL:          DefaultServerURL,
		DateLayout:         DefaultDateLayout,
		RequireAllEvidence: true,
		StatusPolicy:       StatusRollback,
	}
}

// fileConfig uses pointers so a config file can switch booleans off.
type fileConfig struct {
	ServerURL          *string       `yaml:"serverURL" json:"serverURL"`
	TokenDir           *string       `yaml:"tokenDir" json:"tokenDir"`
	CacheDir           *string       `yaml:"cacheDir" json:"cacheDir"`
	Timeout            *string       `yaml:"timeout" json:"timeout"`
	MaxRetries         *uint         `yaml:"maxRetries" json:"maxRetries"`
	DateLayout         *string       `yaml:"dateLayout" json:"dateLayout"`
	RequireAllEvidence *bool         `yaml:"requireAllEvidence" json:"requireAllEvidence"`
	StatusPolicy       *StatusPolicy `yaml:"statusPolicy" json:"statusPolicy"`
	StrictTransitions  *bool         `yaml:"strictTransitions" json:"strictTransitions"`
	Debug              *bool         `yaml:"debug" json:"debug"`
}

// Load resolves the configuration. path may be empty.
// Precedence, lowest first: defaults, .env, environment, config file.
func Load(path string) (Config, error) {
	cfg := Default()

	// A missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("VV_SERVER_URL"); ok && v != "" {
		c.ServerURL = v
	}
	if v, ok := lookup("VV_TOKEN_DIR"); ok && v != "" {
		c.TokenDir = v
	}
	if v, ok := lookup("VV_CACHE_DIR"); ok && v != "" {
		c.CacheDir = v
	}
	if v, ok := lookup("VV_DATE_LAYOUT"); ok && v != "" {
		c.DateLayout = v
	}
	if v, ok := lookup("VV_STATUS_POLICY"); ok && v != "" {
		c.StatusPolicy = StatusPolicy(v)
	}
	if v, ok := lookup("VV_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: VV_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		c.Timeout = d
	}
	if v, ok := lookup("VV_MAX_RETRIES"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: VV_MAX_RETRIES: %v", ErrInvalidConfig, err)
		}
		c.MaxRetries = uint(n)
	}
	if v, ok := lookup("VV_REQUIRE_ALL_EVIDENCE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: VV_REQUIRE_ALL_EVIDENCE: %v", ErrInvalidConfig, err)
		}
		c.RequireAllEvidence = b
	}
	if v, ok := lookup("VV_STRICT_TRANSITIONS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: VV_STRICT_TRANSITIONS: %v", ErrInvalidConfig, err)
		}
		c.StrictTransitions = b
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig

	// Determine file format by extension
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if fc.ServerURL != nil {
		c.ServerURL = *fc.ServerURL
	}
	if fc.TokenDir != nil {
		c.TokenDir = *fc.TokenDir
	}
	if fc.CacheDir != nil {
		c.CacheDir = *fc.CacheDir
	}
	if fc.Timeout != nil {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			return fmt.Errorf("%w: timeout: %v", ErrInvalidConfig, err)
		}
		c.Timeout = d
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if fc.DateLayout != nil {
		c.DateLayout = *fc.DateLayout
	}
	if fc.RequireAllEvidence != nil {
		c.RequireAllEvidence = *fc.RequireAllEvidence
	}
	if fc.StatusPolicy != nil {
		c.StatusPolicy = *fc.StatusPolicy
	}
	if fc.StrictTransitions != nil {
		c.StrictTransitions = *fc.StrictTransitions
	}
	if fc.Debug != nil {
		c.Debug = *fc.Debug
	}

	return nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%w: server URL is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("%w: server URL must start with http:// or https://", ErrInvalidConfig)
	}
	if !c.StatusPolicy.Valid() {
		return fmt.Errorf("%w: unknown status policy %q", ErrInvalidConfig, c.StatusPolicy)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	if c.DateLayout == "" {
		c.DateLayout = DefaultDateLayout
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	return nil
}
