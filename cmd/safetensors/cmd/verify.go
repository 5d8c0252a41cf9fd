// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Validate a safetensors file",
		Long: `Validate the header of a safetensors file against its byte-buffer, then
load every tensor. The command fails on the first problem found.

Example:
  safetensors verify model.safetensors`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			src, err := openSource(configFrom(cmd), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			defer closeSource(src, args[0], &err)

			meta := src.Metadata()
			for _, name := range meta.OffsetKeys() {
				if _, err := src.Tensor(name); err != nil {
					return fmt.Errorf("%s: tensor %q: %w", args[0], name, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d tensors, %d bytes of data)\n",
				args[0], meta.Len(), meta.DataLen())
			return nil
		},
	}
}
