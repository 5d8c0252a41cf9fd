// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"github.com/nlpodyssey/safetensors/v2/dtype"
)

// Tensor provides properties of a tensor, as described within a
// safetensors header.
type Tensor struct {
	Name        string
	DType       dtype.DType
	Shape       Shape
	DataOffsets DataOffsets
}

// TensorSlice is a slice of Tensor objects.
type TensorSlice []Tensor

// TensorSliceByDataOffsets implements sort.Interface allowing to sort a
// TensorSlice by ascending DataOffsets values, then by name.
// It provides Less, while using Len and Swap methods of the embedded
// TensorSlice value.
type TensorSliceByDataOffsets struct{ TensorSlice }

// Len is the number of elements in the collection.
// This function partially satisfies sort.Interface.
func (ts TensorSlice) Len() int {
	return len(ts)
}

// Swap swaps the elements with indexes i and j.
// This function partially satisfies sort.Interface.
func (ts TensorSlice) Swap(i, j int) {
	ts[i], ts[j] = ts[j], ts[i]
}

// Names returns the name of each Tensor, in the same order.
func (ts TensorSlice) Names() []string {
	if len(ts) == 0 {
		return nil
	}
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}

// Less reports whether the Tensor with index i must sort before the Tensor
// with index j, according to their DataOffsets. Names break ties, so that
// the resulting order never depends on the initial one.
func (t TensorSliceByDataOffsets) Less(i, j int) bool {
	a, b := &t.TensorSlice[i], &t.TensorSlice[j]
	if a.DataOffsets == b.DataOffsets {
		return a.Name < b.Name
	}
	return a.DataOffsets.Less(b.DataOffsets)
}
