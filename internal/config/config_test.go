package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Feed.Enabled())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"http": {"addr": ":9090"},
		"engine": {"bookCapacity": 500},
		"instruments": [
			{"id": "btc", "symbol": "BTC-USD", "priceScale": 4},
			{"id": "eth", "symbol": "ETH-USD"}
		],
		"log": {"level": "debug", "development": true},
		"feed": {"brokers": ["localhost:9092"]}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 500, cfg.Engine.BookCapacity)
	assert.Equal(t, int32(2), cfg.Engine.PriceScale)
	require.Len(t, cfg.Instruments, 2)
	assert.Equal(t, InstrumentConfig{ID: "btc", Symbol: "BTC-USD", PriceScale: 4}, cfg.Instruments[0])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.True(t, cfg.Feed.Enabled())
	assert.Equal(t, "trading.events", cfg.Feed.Topic)
	assert.Equal(t, 4096, cfg.Feed.Buffer)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeConfig(t, `{"http": `))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }, "http addr"},
		{"negative capacity", func(c *Config) { c.Engine.BookCapacity = -1 }, "bookCapacity"},
		{"negative scale", func(c *Config) { c.Engine.PriceScale = -1 }, "priceScale"},
		{"instrument without id", func(c *Config) { c.Instruments = []InstrumentConfig{{Symbol: "X"}} }, "id is empty"},
		{"instrument without symbol", func(c *Config) { c.Instruments = []InstrumentConfig{{ID: "x"}} }, "symbol is empty"},
		{"duplicate instrument", func(c *Config) {
			c.Instruments = []InstrumentConfig{{ID: "x", Symbol: "X"}, {ID: "x", Symbol: "Y"}}
		}, "declared twice"},
		{"feed without topic", func(c *Config) { c.Feed.Brokers = []string{"b:9092"}; c.Feed.Topic = "" }, "feed topic"},
		{"feed without buffer", func(c *Config) { c.Feed.Brokers = []string{"b:9092"}; c.Feed.Buffer = 0 }, "feed buffer"},
		{"profiling without server", func(c *Config) { c.Profiling.Enabled = true; c.Profiling.ServerAddress = "" }, "serverAddress"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLogBuild(t *testing.T) {
	logger, err := LogConfig{Level: "warn"}.Build()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	dev, err := LogConfig{Development: true}.Build()
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}
