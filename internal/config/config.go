// Package config provides configuration loading for promptpress.
//
// Configuration precedence (highest to lowest): environment variables,
// YAML config file, hardcoded defaults.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/promptpress/internal/logging"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Config holds the complete promptpress configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   logging.Config  `koanf:"logging"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Analytics AnalyticsConfig `koanf:"analytics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// PipelineConfig holds compression pipeline defaults.
type PipelineConfig struct {
	DefaultModel   string `koanf:"default_model"`
	RecordCapacity int    `koanf:"record_capacity"`
}

// AnalyticsConfig holds the tuning loop configuration.
type AnalyticsConfig struct {
	Window            time.Duration `koanf:"window"`
	RecomputeInterval time.Duration `koanf:"recompute_interval"`
	LearningRate      float64       `koanf:"learning_rate"`
	MinTuningInterval time.Duration `koanf:"min_tuning_interval"`
	MinQuality        float64       `koanf:"min_quality"`
	MinEfficiency     float64       `koanf:"min_efficiency"`
}

// Default returns the hardcoded defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9093,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: logging.NewDefaultConfig(),
		Pipeline: PipelineConfig{
			DefaultModel:   "default",
			RecordCapacity: 4096,
		},
		Analytics: AnalyticsConfig{
			Window:            time.Hour,
			RecomputeInterval: 30 * time.Second,
			LearningRate:      0.1,
			MinTuningInterval: time.Minute,
			MinQuality:        0.6,
			MinEfficiency:     0.4,
		},
	}
}

// Load reads configuration from an optional YAML file, then overrides with
// PROMPTPRESS_-prefixed environment variables.
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing, and splitting on the first underscore group:
//
//	PROMPTPRESS_SERVER_PORT        -> server.port
//	PROMPTPRESS_LOGGING_LEVEL      -> logging.level
//	PROMPTPRESS_ANALYTICS_WINDOW   -> analytics.window
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			content, err := readConfigFile(configPath)
			if err != nil {
				return nil, err
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("PROMPTPRESS_", ".", envKeyTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unusable configurations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Pipeline.RecordCapacity < 1 {
		return fmt.Errorf("record capacity must be positive, got %d", c.Pipeline.RecordCapacity)
	}
	if c.Analytics.LearningRate <= 0 || c.Analytics.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0,1], got %v", c.Analytics.LearningRate)
	}
	return nil
}

// envKeyTransform maps PROMPTPRESS_SECTION_FIELD_NAME to section.field_name.
func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "PROMPTPRESS_"))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile reads the file through a single descriptor with a size
// cap, so the stat and the read cannot race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
