package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
broker:
  host: broker.local
  username: fridge
  password: from-file
  topic: lab/fridge/temp
alert:
  threshold: 5
  label: LRB cold room
telegram:
  token: "123:abc"
  chat_id: -1001
storage:
  last_reading_path: /var/lib/coldwatch/data
ingest:
  poll_interval: 2s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coldwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "broker.local", cfg.Broker.Host)
	assert.Equal(t, 1883, cfg.Broker.Port)
	assert.Equal(t, 60*time.Second, cfg.Broker.KeepAlive)
	assert.Equal(t, 10*time.Second, cfg.Broker.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.Ingest.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Ingest.RetryInterval)
	assert.Equal(t, 5*time.Second, cfg.Ingest.SinkTimeout)
	assert.Equal(t, 5.0, cfg.ThresholdValue())
	assert.Equal(t, "LRB cold room", cfg.Alert.Label)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
	assert.Equal(t, int64(-1001), cfg.Telegram.ChatID)
	assert.Equal(t, "/var/lib/coldwatch/data", cfg.Storage.LastReadingPath)
	assert.Equal(t, 100, cfg.Storage.MemoryCapacity)
	assert.Equal(t, ":8088", cfg.API.Listen)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("COLDWATCH_BROKER_PASSWORD", "from-env")
	t.Setenv("COLDWATCH_ALERT_THRESHOLD", "7.5")
	t.Setenv("COLDWATCH_INGEST_RETRY_INTERVAL", "30s")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Broker.Password)
	assert.Equal(t, "fridge", cfg.Broker.Username)
	assert.Equal(t, 7.5, cfg.ThresholdValue())
	assert.Equal(t, 30*time.Second, cfg.Ingest.RetryInterval)
}

func TestLoadConfig_EnvironmentOnly(t *testing.T) {
	t.Setenv("COLDWATCH_BROKER_HOST", "10.0.0.5")
	t.Setenv("COLDWATCH_BROKER_TOPIC", "fridge")
	t.Setenv("COLDWATCH_ALERT_THRESHOLD", "0")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Broker.Host)
	require.NotNil(t, cfg.Alert.Threshold)
	assert.Equal(t, 0.0, cfg.ThresholdValue())
}

func TestLoadConfig_RetryIntervalNotBelowPoll(t *testing.T) {
	body := sampleConfig + "  retry_interval: 500ms\n"
	cfg, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, cfg.Ingest.PollInterval, cfg.Ingest.RetryInterval)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrReading, cfgErr.Type)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing threshold",
			body: "broker:\n  host: localhost\n  topic: t\n",
		},
		{
			name: "missing topic",
			body: "broker:\n  host: localhost\nalert:\n  threshold: 4\n",
		},
		{
			name: "token without chat id",
			body: "broker:\n  host: localhost\n  topic: t\nalert:\n  threshold: 4\ntelegram:\n  token: abc\n",
		},
		{
			name: "unknown log format",
			body: "broker:\n  host: localhost\n  topic: t\nalert:\n  threshold: 4\nlog:\n  format: xml\n",
		},
		{
			name: "stale timeout below poll interval",
			body: "broker:\n  host: localhost\n  topic: t\nalert:\n  threshold: 4\ningest:\n  poll_interval: 2s\n  stale_timeout: 1s\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, ErrValidation, cfgErr.Type)
		})
	}
}

func TestLoadConfig_BrokerHost(t *testing.T) {
	tests := []struct {
		host  string
		valid bool
	}{
		{"broker.local", true},
		{"1wire.lab.example", true},
		{"10.0.0.5", true},
		{"::1", true},
		{"bad_host!", false},
		{"-broker.local", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			body := "broker:\n  host: \"" + tt.host + "\"\n  topic: t\nalert:\n  threshold: 4\n"
			cfg, err := LoadConfig(writeConfig(t, body))
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.host, cfg.Broker.Host)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, ErrValidation, cfgErr.Type)
		})
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "broker: [unterminated"))

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrParsing, cfgErr.Type)
}
