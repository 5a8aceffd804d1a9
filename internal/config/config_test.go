package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/ratebridge/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.UPSEnabled)
	assert.False(t, cfg.UPSUseMock)
	assert.Equal(t, "https://onlinetools.ups.com", cfg.UPSBaseURL)
	assert.Equal(t, "https://onlinetools.ups.com/security/v1/oauth/token", cfg.UPSTokenURL)
	assert.Equal(t, 10*time.Second, cfg.UPSTimeout)
	assert.Equal(t, "ratebridge", cfg.UPSTransactionSrc)
	assert.Zero(t, cfg.UPSRequestsPerSecond)
	assert.Equal(t, 1, cfg.UPSBurst)
	assert.False(t, cfg.OTELEnabled)
	assert.Equal(t, "ratebridge", cfg.ServiceName)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("UPS_BASE_URL", "https://wwwcie.ups.com/")
	t.Setenv("UPS_TIMEOUT", "750ms")
	t.Setenv("UPS_REQUESTS_PER_SECOND", "2.5")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "https://wwwcie.ups.com", cfg.UPSBaseURL)
	assert.Equal(t, "https://wwwcie.ups.com/security/v1/oauth/token", cfg.UPSTokenURL)
	assert.Equal(t, 750*time.Millisecond, cfg.UPSTimeout)
	assert.Equal(t, 2.5, cfg.UPSRequestsPerSecond)
}

func TestLoad_ExplicitTokenURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UPS_TOKEN_URL", "https://auth.example.com/token")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/token", cfg.UPSTokenURL)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("UPS_CLIENT_ID=from-file\nUPS_ACCOUNT_NUMBER=X9\n"), 0o600))
	t.Setenv("UPS_CLIENT_ID", "from-env")
	// Restored on cleanup so the value read from the file does not leak.
	t.Setenv("UPS_ACCOUNT_NUMBER", "")
	os.Unsetenv("UPS_ACCOUNT_NUMBER")

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.UPSClientID)
	assert.Equal(t, "X9", cfg.UPSAccountNumber)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UPS_TIMEOUT", "soon")

	_, err := config.Load()

	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := config.Config{
		Port:            8080,
		UPSEnabled:      true,
		UPSClientID:     "id",
		UPSClientSecret: "secret",
		UPSTimeout:      time.Second,
	}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.UPSClientID = ""
	missing.UPSClientSecret = ""
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPS_CLIENT_ID")
	assert.Contains(t, err.Error(), "UPS_CLIENT_SECRET")

	mocked := missing
	mocked.UPSUseMock = true
	assert.NoError(t, mocked.Validate(), "mock mode needs no credentials")

	disabled := missing
	disabled.UPSEnabled = false
	assert.NoError(t, disabled.Validate())

	badPort := valid
	badPort.Port = 0
	assert.ErrorContains(t, badPort.Validate(), "PORT")
}

func TestConfig_Attributes(t *testing.T) {
	cfg := config.Config{ServiceName: "ratebridge", Version: "1.2.3", UPSEnabled: true}

	attrs := cfg.Attributes()

	values := map[string]string{}
	for _, kv := range attrs {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "ratebridge", values["service.name"])
	assert.Equal(t, "1.2.3", values["service.version"])
	assert.Equal(t, "true", values["ups.enabled"])
	assert.Equal(t, "false", values["ups.mock"])
}
