// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmd implements the safetensors command line tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nlpodyssey/safetensors/v2"
	"github.com/nlpodyssey/safetensors/v2/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type configKey struct{}

// NewRootCmd returns the base command, with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "safetensors",
		Short: "Inspect and rewrite safetensors files",
		Long: `safetensors reads, validates and rewrites files in the safetensors
format: a JSON header describing named tensors, followed by their raw
little-endian data.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := cfg.Logging.NewLogger()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			safetensors.SetLogger(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = safetensors.Logger().Sync()
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error), overrides the configuration")

	rootCmd.AddCommand(
		newInspectCmd(),
		newSliceCmd(),
		newVerifyCmd(),
		newRepackCmd(),
	)
	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func configFrom(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

// tensorSource is a safetensors file opened for reading, either
// memory-mapped or lazily loaded.
type tensorSource interface {
	Metadata() safetensors.Metadata
	Tensor(name string) (safetensors.TensorView, error)
	Close() error
}

type lazyFile struct {
	*safetensors.LazyST
	file *os.File
}

func (lf lazyFile) Tensor(name string) (safetensors.TensorView, error) {
	lt, ok := lf.LazyTensor(name)
	if !ok {
		return safetensors.TensorView{}, &safetensors.TensorNotFoundError{Name: name}
	}
	return lt.View()
}

func (lf lazyFile) Close() error {
	return lf.file.Close()
}

func openSource(cfg *config.Config, path string) (tensorSource, error) {
	if cfg.Reader.UseMmap {
		f, err := safetensors.OpenFile(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	st, err := safetensors.NewLazy(f, cfg.Reader.HeaderSizeLimit)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return lazyFile{LazyST: st, file: f}, nil
}

func closeSource(src tensorSource, path string, err *error) {
	if closeErr := src.Close(); closeErr != nil {
		safetensors.Logger().Warn("failed to close file", zap.String("file", path), zap.Error(closeErr))
		*err = errors.Join(*err, closeErr)
	}
}
