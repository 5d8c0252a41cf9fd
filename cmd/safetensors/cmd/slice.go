// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nlpodyssey/safetensors/v2"
	"github.com/nlpodyssey/safetensors/v2/internal/elemfmt"
	"github.com/spf13/cobra"
)

func newSliceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slice <file> <tensor> [index...]",
		Short: "Print a sub-range of a tensor",
		Long: `Print the values of a tensor, optionally restricted to a sub-range.

Each index applies to one leading dimension and is one of:
  i      a single coordinate
  a:b    coordinates from a (included) to b (excluded)
  a:     coordinates from a to the end
  :b     coordinates from 0 to b (excluded)
  :      the whole dimension
  a..=b  coordinates from a to b, both included
  ..=b   coordinates from 0 to b (included)

Example:
  safetensors slice model.safetensors embeddings 0 :8`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			indexes := make([]safetensors.IndexOp, len(args)-2)
			for i, s := range args[2:] {
				if indexes[i], err = parseIndexOp(s); err != nil {
					return err
				}
			}

			src, err := openSource(configFrom(cmd), args[0])
			if err != nil {
				return err
			}
			defer closeSource(src, args[0], &err)

			tv, err := src.Tensor(args[1])
			if err != nil {
				return err
			}
			it, err := tv.SlicedData(indexes...)
			if err != nil {
				return err
			}
			return printSlice(cmd, tv, it)
		},
	}
}

// printSlice writes one line per run of the innermost selected dimension.
func printSlice(cmd *cobra.Command, tv safetensors.TensorView, it *safetensors.SliceIterator) error {
	out := cmd.OutOrStdout()
	shape := it.Shape()
	fmt.Fprintf(out, "%s %v\n", tv.DType(), shape)

	rowLen := uint64(1)
	if len(shape) > 0 {
		rowLen = shape[len(shape)-1]
	}
	var sb strings.Builder
	col := uint64(0)
	for b := range it.All() {
		s, err := elemfmt.Format(tv.DType(), b)
		if err != nil {
			return err
		}
		if col > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
		if col++; col == rowLen {
			fmt.Fprintln(out, sb.String())
			sb.Reset()
			col = 0
		}
	}
	return nil
}

// parseIndexOp converts the textual form of an index into an IndexOp.
func parseIndexOp(s string) (safetensors.IndexOp, error) {
	parse := func(v string) (uint64, error) {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid index %q: %w", s, err)
		}
		return n, nil
	}

	if a, b, ok := strings.Cut(s, "..="); ok {
		end, err := parse(b)
		if err != nil {
			return safetensors.IndexOp{}, err
		}
		if a == "" {
			return safetensors.RangeToInclusive(end), nil
		}
		start, err := parse(a)
		if err != nil {
			return safetensors.IndexOp{}, err
		}
		return safetensors.RangeInclusive(start, end), nil
	}

	a, b, ok := strings.Cut(s, ":")
	if !ok {
		i, err := parse(s)
		if err != nil {
			return safetensors.IndexOp{}, err
		}
		return safetensors.Index(i), nil
	}

	start, end := safetensors.Unbounded(), safetensors.Unbounded()
	if a != "" {
		n, err := parse(a)
		if err != nil {
			return safetensors.IndexOp{}, err
		}
		start = safetensors.Included(n)
	}
	if b != "" {
		n, err := parse(b)
		if err != nil {
			return safetensors.IndexOp{}, err
		}
		end = safetensors.Excluded(n)
	}
	return safetensors.Span(start, end), nil
}
