// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the configuration of the safetensors command.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nlpodyssey/safetensors/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of the safetensors command.
type Config struct {
	Logging Logging `yaml:"logging"`
	Reader  Reader  `yaml:"reader"`
	Writer  Writer  `yaml:"writer"`
}

// Logging contains logging configuration.
type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Reader configures how safetensors files are read.
type Reader struct {
	// HeaderSizeLimit bounds the header size accepted by the lazy reader.
	HeaderSizeLimit int `yaml:"header_size_limit"`
	// UseMmap selects memory-mapping over lazy reads.
	UseMmap bool `yaml:"use_mmap"`
}

// Writer configures how safetensors files are written.
type Writer struct {
	BufferSize int  `yaml:"buffer_size"`
	Workers    int  `yaml:"workers"`
	NoCache    bool `yaml:"no_cache"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: Logging{
			Level: "info",
		},
		Reader: Reader{
			HeaderSizeLimit: safetensors.MaxHeaderSize,
			UseMmap:         true,
		},
		Writer: Writer{
			BufferSize: safetensors.DefaultBufferSize,
			Workers:    1,
		},
	}
}

// LoadConfig loads configuration from the specified path. Settings missing
// from the file keep their default value.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path.
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the consistency of the configuration values.
func (c *Config) Validate() error {
	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Reader.HeaderSizeLimit < 0 || c.Reader.HeaderSizeLimit > safetensors.MaxHeaderSize {
		return fmt.Errorf("reader.header_size_limit must be between 0 and %d, got %d",
			safetensors.MaxHeaderSize, c.Reader.HeaderSizeLimit)
	}
	if c.Writer.BufferSize < 0 {
		return fmt.Errorf("writer.buffer_size must not be negative, got %d", c.Writer.BufferSize)
	}
	if c.Writer.Workers < 1 {
		return fmt.Errorf("writer.workers must be at least 1, got %d", c.Writer.Workers)
	}
	return nil
}

// NewLogger builds a zap logger from the logging configuration.
func (l Logging) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// FileOptions converts the writer configuration to safetensors.FileOptions.
func (w Writer) FileOptions() safetensors.FileOptions {
	return safetensors.FileOptions{
		BufferSize: w.BufferSize,
		Workers:    w.Workers,
		NoCache:    w.NoCache,
	}
}
