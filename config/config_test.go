package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gate "github.com/0x5487/order-gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
env: test
trading_window:
  start: "22:00"
  end: "06:00"
  timezone: Asia/Tokyo
rate_limit:
  orders_per_second: 25
credentials:
  username: trader
  password: secret
dispatcher:
  tick_interval: 50ms
http:
  address: ":9090"
kafka:
  brokers: ["localhost:9092"]
log:
  level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "22:00", cfg.TradingWindow.Start)
	assert.Equal(t, 25, cfg.RateLimit.OrdersPerSecond)
	assert.Equal(t, 50*time.Millisecond, cfg.Dispatcher.TickInterval)
	assert.Equal(t, time.Second, cfg.Dispatcher.SessionCheckInterval)
	assert.Equal(t, ":9090", cfg.HTTPServer.Addr)
	assert.Equal(t, 5*time.Second, cfg.Metrics.StaleAfter)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "order-gate.outbound", cfg.Kafka.Topic)

	w, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, "22:00-06:00 Asia/Tokyo", w.String())

	creds := cfg.GateCredentials()
	assert.Equal(t, "trader", creds.Username)
	assert.Equal(t, "secret", creds.Password)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("GATE_ORDERS_PER_SECOND", "3")
	t.Setenv("GATE_WINDOW_TIMEZONE", "UTC")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.RateLimit.OrdersPerSecond)
	assert.Equal(t, "UTC", cfg.TradingWindow.Timezone)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("GATE_USERNAME", "env-trader")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "09:30", cfg.TradingWindow.Start)
	assert.Equal(t, "16:00", cfg.TradingWindow.End)
	assert.Equal(t, 10, cfg.RateLimit.OrdersPerSecond)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		target error
	}{
		{
			name:   "bad time format",
			yaml:   "trading_window:\n  start: \"9:30\"\ncredentials:\n  username: a\n",
			target: gate.ErrInvalidTimeFormat,
		},
		{
			name:   "unknown timezone",
			yaml:   "trading_window:\n  timezone: Mars/Base\ncredentials:\n  username: a\n",
			target: gate.ErrConfiguration,
		},
		{
			name:   "negative rate",
			yaml:   "rate_limit:\n  orders_per_second: -1\ncredentials:\n  username: a\n",
			target: gate.ErrConfiguration,
		},
		{
			name:   "missing username",
			yaml:   "env: test\n",
			target: gate.ErrConfiguration,
		},
		{
			name:   "bad log level",
			yaml:   "log:\n  level: loud\ncredentials:\n  username: a\n",
			target: gate.ErrConfiguration,
		},
		{
			name:   "ring size not power of two",
			yaml:   "metrics:\n  ring_size: 1000\ncredentials:\n  username: a\n",
			target: gate.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, gate.ErrConfiguration)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, gate.ErrConfiguration)
}
