package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*24*time.Hour, cfg.ConsentFreshFor)
	assert.Equal(t, 6*365*24*time.Hour, cfg.RetentionPeriod)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
addr: ":9090"
consentFreshFor: 720h
trustedProxies:
  - 10.0.0.0/8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CUSTODIA_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 720*time.Hour, cfg.ConsentFreshFor)
	// fields absent from the file keep their defaults
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)

	prefixes, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 1)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`addr: ":9090"`), 0o600))
	t.Setenv("CUSTODIA_CONFIG", path)
	t.Setenv("CUSTODIA_ADDR", ":7070")
	t.Setenv("CUSTODIA_PURGE_INTERVAL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, 15*time.Minute, cfg.PurgeInterval)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`requestTimeout: soon`), 0o600))
	t.Setenv("CUSTODIA_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadProxyPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "trustedProxies:\n  - not-a-cidr\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CUSTODIA_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}
