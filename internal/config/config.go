// Package config loads adapter settings from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix is prepended to every setting name.
const envPrefix = "EVS"

// Environment variable names for the settings the handshake requires. The
// session layer reports these verbatim when one is missing.
const (
	SettingUtilDir      = "EVS_UTIL_DIR"
	SettingAccount      = "EVS_UTIL_ACCOUNT"
	SettingPasswordFile = "EVS_UTIL_PASSWORD_FILE"
	SettingPvtKeyFile   = "EVS_UTIL_PVT_KEY_FILE"
)

// UtilConfig locates the transfer utility and its credentials.
type UtilConfig struct {
	// Dir is the directory containing the idevsutil binary.
	Dir          string
	Account      string
	PasswordFile string `split_words:"true"`
	// PvtKeyFile is only required for accounts using private encryption.
	PvtKeyFile string `split_words:"true"`
}

// RemoteConfig contains remote layout settings.
type RemoteConfig struct {
	// Prefix is the directory under home/ that holds the archive files.
	Prefix string `default:"backups"`
}

// MonitoringConfig contains metrics settings.
type MonitoringConfig struct {
	MetricsPort int `split_words:"true" default:"9402"`
}

// JanitorConfig controls the periodic sweep of leftover remote staging
// directories.
type JanitorConfig struct {
	Enabled  bool   `default:"false"`
	Schedule string `default:"0 * * * *"`
}

type Config struct {
	Util       UtilConfig
	Remote     RemoteConfig
	Monitoring MonitoringConfig
	Janitor    JanitorConfig
}

// Load reads the EVS_* environment and validates structural settings. The
// credential settings are deliberately not required here: the session
// handshake checks them so a missing one surfaces as a typed configuration
// error naming the setting.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Monitoring.MetricsPort <= 0 || c.Monitoring.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid metrics port number: %d", c.Monitoring.MetricsPort))
	}

	if c.Remote.Prefix == "" || strings.HasPrefix(c.Remote.Prefix, "/") {
		errs = append(errs, fmt.Errorf("remote prefix must be a relative path, got %q", c.Remote.Prefix))
	}

	if c.Janitor.Enabled {
		if ok, err := ParseCronSchedule(c.Janitor.Schedule); !ok {
			errs = append(errs, fmt.Errorf("invalid janitor schedule: %w", err))
		}
	}

	return combineErrors(errs)
}

// combineErrors folds multiple validation failures into one error.
func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return NewValidationError(errs)
}

// ValidationError represents multiple configuration validation errors.
type ValidationError struct {
	Errors []error
}

func NewValidationError(errs []error) *ValidationError {
	return &ValidationError{Errors: errs}
}

func (ve *ValidationError) Error() string {
	msgs := []string{"configuration validation failed:"}
	for _, err := range ve.Errors {
		msgs = append(msgs, "  - "+err.Error())
	}
	return strings.Join(msgs, "\n")
}
