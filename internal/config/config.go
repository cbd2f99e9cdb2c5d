package config

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"go.uber.org/zap"
)

// Config mirrors the JSON config layout.
type Config struct {
	HTTP        HTTPConfig         `json:"http"`
	Engine      EngineConfig       `json:"engine"`
	Instruments []InstrumentConfig `json:"instruments"`
	Log         LogConfig          `json:"log"`
	Feed        FeedConfig         `json:"feed"`
	Profiling   ProfilingConfig    `json:"profiling"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// EngineConfig tunes the order books.
type EngineConfig struct {
	// BookCapacity caps active resting orders per instrument, 0 = unbounded.
	BookCapacity int `json:"bookCapacity"`
	// PriceScale is the default quoting precision.
	PriceScale int32 `json:"priceScale"`
}

// InstrumentConfig pre-registers an instrument at startup.
type InstrumentConfig struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	PriceScale int32  `json:"priceScale"`
}

// LogConfig selects the zap preset and level.
type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// FeedConfig enables the Kafka event feed when Brokers is not empty.
type FeedConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	Buffer  int      `json:"buffer"`
}

// Enabled reports whether a feed should be started.
func (f FeedConfig) Enabled() bool {
	return len(f.Brokers) != 0
}

// ProfilingConfig controls the pyroscope profiler.
type ProfilingConfig struct {
	Enabled         bool              `json:"enabled"`
	ServerAddress   string            `json:"serverAddress"`
	ApplicationName string            `json:"applicationName"`
	Tags            map[string]string `json:"tags"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Engine: EngineConfig{
			BookCapacity: 0,
			PriceScale:   2,
		},
		Log: LogConfig{Level: "info"},
		Feed: FeedConfig{
			Topic:  "trading.events",
			Buffer: 4096,
		},
		Profiling: ProfilingConfig{
			ServerAddress:   "http://localhost:4040",
			ApplicationName: "trading-system",
		},
	}
}

// Load reads a JSON config file on top of Default and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and instrument uniqueness.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http addr is empty")
	}
	if c.Engine.BookCapacity < 0 {
		return fmt.Errorf("engine bookCapacity must be >= 0")
	}
	if c.Engine.PriceScale < 0 {
		return fmt.Errorf("engine priceScale must be >= 0")
	}

	seen := make(map[string]struct{}, len(c.Instruments))
	for i, inst := range c.Instruments {
		if inst.ID == "" {
			return fmt.Errorf("instrument[%d] id is empty", i)
		}
		if inst.Symbol == "" {
			return fmt.Errorf("instrument %s symbol is empty", inst.ID)
		}
		if inst.PriceScale < 0 {
			return fmt.Errorf("instrument %s priceScale must be >= 0", inst.ID)
		}
		if _, dup := seen[inst.ID]; dup {
			return fmt.Errorf("instrument %s declared twice", inst.ID)
		}
		seen[inst.ID] = struct{}{}
	}

	if c.Feed.Enabled() {
		if c.Feed.Topic == "" {
			return fmt.Errorf("feed topic is empty")
		}
		if c.Feed.Buffer <= 0 {
			return fmt.Errorf("feed buffer must be > 0")
		}
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling serverAddress is empty")
	}

	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	return nil
}

// Build returns a zap logger for this configuration.
func (c LogConfig) Build() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	return zc.Build()
}
