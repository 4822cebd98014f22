package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dawidmalina/alertops/internal/plugin"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseConfig(t *testing.T) {
	path := writeConfig(t, `
listen_port: "9090"
log_level: debug
log_format: json
webhook_api_key: secret
allowed_ips: ["10.0.0.0/8", "127.0.0.1"]
require_https: true
trusted_proxies: ["192.168.0.10"]
max_body_bytes: 2048
rate_limit_per_second: 5
shutdown_grace_period: 30s
plugins:
  enabled: [logger, recall]
  logger:
    level: warning
  recall:
    max_history: 20
  dump:
`)

	config, err := ParseConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", config.ListenPort)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "secret", config.WebhookAPIKey)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, config.AllowedIPs)
	assert.True(t, config.RequireHTTPS)
	assert.Equal(t, []string{"192.168.0.10"}, config.TrustedProxies)
	assert.Equal(t, int64(2048), config.MaxBodyBytes)
	assert.Equal(t, 5, config.RateLimitPerSecond)
	assert.Equal(t, 30*time.Second, config.ShutdownGracePeriod)
	assert.Equal(t, path, config.loadedFrom)

	assert.Equal(t, []string{"logger", "recall"}, config.Plugins.Enabled)
	assert.Equal(t, plugin.Options{"level": "warning"}, config.Plugins.Options["logger"])
	assert.Equal(t, plugin.Options{"max_history": 20}, config.Plugins.Options["recall"])
	assert.Equal(t, plugin.Options{}, config.Plugins.Options["dump"])
}

func TestParseConfig_Defaults(t *testing.T) {
	config, err := ParseConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", config.ListenPort)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "text", config.LogFormat)
	assert.Equal(t, int64(1<<20), config.MaxBodyBytes)
	assert.Equal(t, 10*time.Second, config.ShutdownGracePeriod)
	assert.Equal(t, []string{"logger"}, config.Plugins.Enabled)
	assert.Empty(t, config.loadedFrom)
}

func TestParseConfig_PartialFileKeepsDefaults(t *testing.T) {
	config, err := ParseConfig(writeConfig(t, "log_level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "warn", config.LogLevel)
	assert.Equal(t, "8080", config.ListenPort)
	assert.Equal(t, []string{"logger"}, config.Plugins.Enabled)
}

func TestParseConfig_EmptyFile(t *testing.T) {
	config, err := ParseConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "8080", config.ListenPort)
}

func TestParseConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ALERTOPS_LISTEN_PORT", "7070")
	t.Setenv("ALERTOPS_ALLOWED_IPS", "10.0.0.1,10.0.0.2")
	t.Setenv("ALERTOPS_SHUTDOWN_GRACE_PERIOD", "1m")

	config, err := ParseConfig(writeConfig(t, "listen_port: \"9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "7070", config.ListenPort)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, config.AllowedIPs)
	assert.Equal(t, time.Minute, config.ShutdownGracePeriod)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":         "listen_port: [",
		"bad port":         "listen_port: \"http\"",
		"bad log format":   "log_format: xml",
		"bad allowed ip":   "allowed_ips: [\"10.0.0.300\"]",
		"bad proxy":        "trusted_proxies: [\"lb.local\"]",
		"zero body limit":  "max_body_bytes: 0",
		"negative rate":    "rate_limit_per_second: -1",
		"plugin not a map": "plugins:\n  logger: loud\n",
		"enabled not list": "plugins:\n  enabled: logger\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger("debug", "json"))
	assert.Equal(t, "debug", log.GetLevel().String())

	require.NoError(t, InitLogger("nonsense", "text"))
	assert.Equal(t, "info", log.GetLevel().String())

	assert.Error(t, InitLogger("info", "xml"))
}
