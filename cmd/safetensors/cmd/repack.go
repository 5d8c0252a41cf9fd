// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nlpodyssey/safetensors/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRepackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repack <input> <output>",
		Short: "Rewrite a safetensors file with the canonical layout",
		Long: `Rewrite a safetensors file: tensors are sorted by decreasing alignment
then name, and the header is re-encoded compactly. Metadata is kept.

Example:
  safetensors repack model.safetensors model.repacked.safetensors`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			in, out := args[0], args[1]
			opts := cfg.Writer.FileOptions()

			if same, err := samePath(in, out); err != nil {
				return err
			} else if same {
				return fmt.Errorf("input and output must be different files: %s", in)
			}

			var err error
			if cfg.Reader.UseMmap {
				err = repackMapped(cmd, in, out, opts)
			} else {
				err = repackLazy(cmd, cfg.Reader.HeaderSizeLimit, in, out, opts)
			}
			if err != nil {
				return err
			}
			safetensors.Logger().Info("repacked file", zap.String("input", in), zap.String("output", out))
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", in, out)
			return nil
		},
	}
}

func repackMapped(cmd *cobra.Command, in, out string, opts safetensors.FileOptions) (err error) {
	f, err := safetensors.OpenFile(in)
	if err != nil {
		return err
	}
	defer closeSource(f, in, &err)

	data := make(map[string]safetensors.TensorView, f.Len())
	for name, tv := range f.Iter() {
		data[name] = tv
	}
	return safetensors.WriteFile(cmd.Context(), out, data, f.Metadata().Metadata(), opts)
}

func repackLazy(cmd *cobra.Command, headerSizeLimit int, in, out string, opts safetensors.FileOptions) (err error) {
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	st, err := safetensors.NewLazy(f, headerSizeLimit)
	if err != nil {
		return err
	}
	data := make(map[string]safetensors.LazyTensor, st.Metadata().Len())
	for _, lt := range st.LazyTensors() {
		data[lt.Name()] = lt
	}
	return safetensors.WriteFile(cmd.Context(), out, data, st.Metadata().Metadata(), opts)
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
