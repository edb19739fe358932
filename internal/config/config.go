// Package config provides configuration loading for netmend.
package config

import (
	"fmt"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Inference InferenceConfig `koanf:"inference"`
	Apply     ApplyConfig     `koanf:"apply"`
	Baseline  BaselineConfig  `koanf:"baseline"`
	Device    DeviceConfig    `koanf:"device"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// TelemetryConfig configures OTLP export. When disabled the engine
// still instruments with the no-op global providers.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
	Insecure    bool   `koanf:"insecure"`
}

// KnowledgeConfig configures the rule set and history store.
type KnowledgeConfig struct {
	// HistoryBackend is memory or sqlite.
	HistoryBackend string `koanf:"history_backend"`
	SQLitePath     string `koanf:"sqlite_path"`

	// RulePacks are YAML files loaded on top of the seed rules. When
	// WatchRulePacks is set the files are reloaded on change.
	RulePacks      []string `koanf:"rule_packs"`
	WatchRulePacks bool     `koanf:"watch_rule_packs"`

	LearnRate float64 `koanf:"learn_rate"`
	Decay     float64 `koanf:"decay"`
}

// InferenceConfig tunes the diagnosis engine.
type InferenceConfig struct {
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	TopK                int     `koanf:"top_k"`
	MinSampleSize       int     `koanf:"min_sample_size"`
}

// ApplyConfig tunes fix plan execution.
type ApplyConfig struct {
	CommandTimeout time.Duration `koanf:"command_timeout"`
	StepRetries    int           `koanf:"step_retries"`
}

// BaselineConfig points at the expected-state file.
type BaselineConfig struct {
	Path string `koanf:"path"`
}

// DeviceConfig paces command delivery per device session.
type DeviceConfig struct {
	CommandsPerSecond float64 `koanf:"commands_per_second"`
	Burst             int     `koanf:"burst"`
}

// applyDefaults fills missing values in place.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8420"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "netmend"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}

	if cfg.Knowledge.HistoryBackend == "" {
		cfg.Knowledge.HistoryBackend = "memory"
	}
	if cfg.Knowledge.SQLitePath == "" {
		cfg.Knowledge.SQLitePath = "netmend.db"
	}
	if cfg.Knowledge.LearnRate == 0 {
		cfg.Knowledge.LearnRate = 0.1
	}
	if cfg.Knowledge.Decay == 0 {
		cfg.Knowledge.Decay = 0.8
	}

	if cfg.Inference.ConfidenceThreshold == 0 {
		cfg.Inference.ConfidenceThreshold = 0.8
	}
	if cfg.Inference.TopK == 0 {
		cfg.Inference.TopK = 3
	}
	if cfg.Inference.MinSampleSize == 0 {
		cfg.Inference.MinSampleSize = 50
	}

	if cfg.Apply.CommandTimeout == 0 {
		cfg.Apply.CommandTimeout = 10 * time.Second
	}
	if cfg.Apply.StepRetries == 0 {
		cfg.Apply.StepRetries = 1
	}

	if cfg.Device.CommandsPerSecond == 0 {
		cfg.Device.CommandsPerSecond = 5
	}
	if cfg.Device.Burst == 0 {
		cfg.Device.Burst = 10
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}

	switch c.Knowledge.HistoryBackend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid history backend %q", c.Knowledge.HistoryBackend)
	}
	if c.Knowledge.LearnRate <= 0 || c.Knowledge.LearnRate >= 1 {
		return fmt.Errorf("learn_rate %v outside (0,1)", c.Knowledge.LearnRate)
	}
	if c.Knowledge.Decay <= 0 || c.Knowledge.Decay >= 1 {
		return fmt.Errorf("decay %v outside (0,1)", c.Knowledge.Decay)
	}

	if c.Inference.ConfidenceThreshold <= 0 || c.Inference.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold %v outside (0,1]", c.Inference.ConfidenceThreshold)
	}
	if c.Inference.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1, got %d", c.Inference.TopK)
	}

	if c.Apply.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive")
	}
	if c.Apply.StepRetries < 0 {
		return fmt.Errorf("step_retries must not be negative")
	}

	if c.Device.CommandsPerSecond <= 0 {
		return fmt.Errorf("commands_per_second must be positive")
	}
	return nil
}
