// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the header of a safetensors file",
		Long: `Print the free-form metadata and the description of every tensor
of a safetensors file, in byte-buffer order.

Example:
  safetensors inspect model.safetensors`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			src, err := openSource(configFrom(cmd), args[0])
			if err != nil {
				return err
			}
			defer closeSource(src, args[0], &err)

			meta := src.Metadata()
			out := cmd.OutOrStdout()

			if m := meta.Metadata(); len(m) > 0 {
				fmt.Fprintln(out, "Metadata:")
				keys := make([]string, 0, len(m))
				for k := range m {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "  %s: %s\n", k, m[k])
				}
				fmt.Fprintln(out)
			}

			fmt.Fprintf(out, "Tensors: %d, data: %d bytes\n", meta.Len(), meta.DataLen())
			if meta.Len() == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDTYPE\tSHAPE\tOFFSETS")
			for _, name := range meta.OffsetKeys() {
				info, _ := meta.Info(name)
				fmt.Fprintf(tw, "%s\t%s\t%v\t[%d, %d)\n",
					name, info.DType, info.Shape, info.DataOffsets[0], info.DataOffsets[1])
			}
			return tw.Flush()
		},
	}
}
