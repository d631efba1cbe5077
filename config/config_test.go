package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, Load(&cfg, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, "BTC-USD", cfg.Engine.Symbol)
	assert.Equal(t, 1024, cfg.Engine.InboxSize)
	assert.Equal(t, time.Second, cfg.Engine.DepthInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.ScanInterval)
	assert.Equal(t, uint32(5), cfg.Outbox.MaxRetries)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "sarama", cfg.Kafka.Client)
	assert.Equal(t, "lob.reports", cfg.NATS.Subject)
	assert.Equal(t, 0.2, cfg.Sim.CancelRatio)
}

func TestLoad_EnvironmentAndFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte("ENGINE_SYMBOL=ETH-USD\nSIM_ORDERS=7\n"), 0o600))

	t.Setenv("ENGINE_SYMBOL", "SOL-USD")
	t.Setenv("ENGINE_CHECK_INVARIANTS", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "debug")
	// godotenv sets what it loads; register SIM_ORDERS so it is restored
	t.Setenv("SIM_ORDERS", "")
	require.NoError(t, os.Unsetenv("SIM_ORDERS"))

	var cfg Config
	require.NoError(t, Load(&cfg, file))

	assert.Equal(t, "SOL-USD", cfg.Engine.Symbol, "process env wins over file")
	assert.True(t, cfg.Engine.CheckInvariants)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Sim.Orders)
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("ENGINE_INBOX_SIZE", "lots")
	var cfg Config
	assert.Error(t, Load(&cfg, filepath.Join(t.TempDir(), "none.env")))
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string][2]string{
		"ratio above one": {"SIM_MARKET_RATIO", "1.5"},
		"unknown client":  {"KAFKA_CLIENT", "franz"},
		"zero inbox":      {"ENGINE_INBOX_SIZE", "0"},
		"unknown level":   {"LOG_LEVEL", "chatty"},
		"zero tick":       {"SIM_TICK", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			var cfg Config
			err := Load(&cfg, filepath.Join(t.TempDir(), "none.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}
