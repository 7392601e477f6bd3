package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "backups", cfg.Remote.Prefix)
	assert.Equal(t, 9402, cfg.Monitoring.MetricsPort)
	assert.False(t, cfg.Janitor.Enabled)
	assert.Equal(t, "0 * * * *", cfg.Janitor.Schedule)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("EVS_UTIL_DIR", "/opt/idrive")
	t.Setenv("EVS_UTIL_ACCOUNT", "acct")
	t.Setenv("EVS_UTIL_PASSWORD_FILE", "/etc/idrive/password")
	t.Setenv("EVS_UTIL_PVT_KEY_FILE", "/etc/idrive/key")
	t.Setenv("EVS_REMOTE_PREFIX", "archive/host1")
	t.Setenv("EVS_MONITORING_METRICS_PORT", "9999")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "/opt/idrive", cfg.Util.Dir)
	assert.Equal(t, "acct", cfg.Util.Account)
	assert.Equal(t, "/etc/idrive/password", cfg.Util.PasswordFile)
	assert.Equal(t, "/etc/idrive/key", cfg.Util.PvtKeyFile)
	assert.Equal(t, "archive/host1", cfg.Remote.Prefix)
	assert.Equal(t, 9999, cfg.Monitoring.MetricsPort)
}

func TestLoadMissingCredentialsIsNotAnError(t *testing.T) {
	// The handshake reports missing credential settings with a typed error;
	// Load only checks structural settings.
	cfg, err := Load()
	assert.NoError(t, err)
	assert.Empty(t, cfg.Util.Account)
}

func TestLoadInvalidMetricsPort(t *testing.T) {
	t.Setenv("EVS_MONITORING_METRICS_PORT", "70000")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "metrics port")
}

func TestLoadInvalidRemotePrefix(t *testing.T) {
	t.Setenv("EVS_REMOTE_PREFIX", "/absolute/path")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "remote prefix")
}

func TestLoadInvalidJanitorSchedule(t *testing.T) {
	t.Setenv("EVS_JANITOR_ENABLED", "true")
	t.Setenv("EVS_JANITOR_SCHEDULE", "not a schedule")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "janitor schedule")
}

func TestParseCronSchedule(t *testing.T) {
	ok, err := ParseCronSchedule("0 * * * *")
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = ParseCronSchedule("")
	assert.False(t, ok)
	assert.Error(t, err)

	ok, err = ParseCronSchedule("61 * * * *")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestValidationErrorMessage(t *testing.T) {
	t.Setenv("EVS_MONITORING_METRICS_PORT", "0")
	t.Setenv("EVS_REMOTE_PREFIX", "/bad")

	_, err := Load()
	assert.Error(t, err)

	ve, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Len(t, ve.Errors, 2)
}
