package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8096, cfg.Port)
	assert.Equal(t, 4, cfg.MaxTranscodes)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDIASERVER_PORT", "9000")
	t.Setenv("MEDIASERVER_MAX_TRANSCODES", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 8, cfg.MaxTranscodes)
}

func TestLoad_CORSOriginsSplitsOnComma(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEDIASERVER_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

// clearEnv strips MEDIASERVER_* variables the calling test didn't set, so
// Load() is exercised against a known-clean environment regardless of test
// ordering or a developer's shell. Each cleared variable is restored once
// the test completes.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasPrefix(key, "MEDIASERVER_") {
			continue
		}
		os.Unsetenv(key)
		t.Cleanup(func() { os.Setenv(key, value) })
	}
}
