package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	github_handler "github.com/MyCarrier-DevOps/goLibGitHubClient/github"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv("GITHUB_CLIENT_TIMEOUT", "")
	t.Setenv("GITHUB_OUTBOUND_PROXY", "")
	t.Setenv("GITHUB_TRUSTED_DOMAINS", "")
	t.Setenv("LOG_LEVEL", "")

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, github_handler.DefaultRequestTimeout, settings.Timeout)
	assert.Equal(t, "info", settings.LogLevel)
	assert.Empty(t, settings.TrustedDomains)
	assert.Empty(t, settings.OutboundProxy)
}

func TestLoadSettings_FromEnv(t *testing.T) {
	t.Setenv("GITHUB_CLIENT_TIMEOUT", "5s")
	t.Setenv("GITHUB_OUTBOUND_PROXY", "http://proxy.internal:3128")
	t.Setenv("GITHUB_NO_PROXY", "localhost")
	t.Setenv("GITHUB_TRUSTED_DOMAINS", "ghe.example.com, Corp.Example ,")
	t.Setenv("GITHUB_USER_AGENT", "sync-worker/1.0")
	t.Setenv("LOG_LEVEL", "debug")

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, settings.Timeout)
	assert.Equal(t, []string{"ghe.example.com", "corp.example"}, settings.TrustedDomains)
	assert.Equal(t, "debug", settings.LogLevel)

	cs := settings.ClientSettings()
	assert.Equal(t, 5*time.Second, cs.Timeout)
	assert.Equal(t, "sync-worker/1.0", cs.UserAgent)
	assert.Equal(t, "http://proxy.internal:3128", cs.Proxy.OutboundProxy)
	assert.Equal(t, "localhost", cs.Proxy.NoProxy)
	assert.Equal(t, settings.TrustedDomains, cs.Proxy.TrustedDomains)
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Run("negative timeout", func(t *testing.T) {
		t.Setenv("GITHUB_CLIENT_TIMEOUT", "-1s")
		t.Setenv("LOG_LEVEL", "")
		_, err := LoadSettings()
		assert.ErrorContains(t, err, "GITHUB_CLIENT_TIMEOUT")
	})

	t.Run("unknown log level", func(t *testing.T) {
		t.Setenv("GITHUB_CLIENT_TIMEOUT", "")
		t.Setenv("LOG_LEVEL", "verbose")
		_, err := LoadSettings()
		assert.ErrorContains(t, err, "LOG_LEVEL")
	})
}

func TestSettingsLogger(t *testing.T) {
	s := &Settings{LogLevel: "warn"}
	log := s.Logger()
	require.NotNil(t, log)
	assert.False(t, log.Zap().Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Zap().Core().Enabled(zap.WarnLevel))
}
