package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "insecure is false and no hmac_secret is configured, so validation should fail")
	assert.Equal(t, Default().Limits.HistoryCap, cfg.Limits.HistoryCap)
}

func TestLoadInsecureModeWithoutFile(t *testing.T) {
	t.Setenv("MEW_AUTH_INSECURE", "true")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Auth.Insecure)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	contents := "server:\n  addr: \":9090\"\nauth:\n  hmac_secret: \"s3cret\"\nlimits:\n  history_cap: 500\n  max_envelope_bytes: 2048\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.HMACSecret)
	assert.Equal(t, 500, cfg.Limits.HistoryCap)
}

func TestEnvOverridesFileValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\nauth:\n  hmac_secret: \"s3cret\"\n"), 0o644))
	t.Setenv("MEW_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestValidateRejectsMissingSecretWhenNotInsecure(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidatePassesInInsecureMode(t *testing.T) {
	cfg := Default()
	cfg.Auth.Insecure = true
	require.NoError(t, cfg.Validate())
}
