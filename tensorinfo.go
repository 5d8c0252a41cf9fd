// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"slices"

	"github.com/nlpodyssey/safetensors/v2/dtype"
)

// TensorInfo provides information of a single tensor.
// Endianness is assumed to be little-endian. Ordering is assumed to be 'C'.
type TensorInfo struct {
	// The DType of each element of the tensor.
	DType dtype.DType
	// The Shape of the tensor.
	Shape []uint64
	// DataOffsets provides the offsets to find the data
	// within the byte-buffer array.
	DataOffsets [2]uint64
}

// NamedTensorInfo is a pair of a TensorInfo and its name (or label, or key).
type NamedTensorInfo struct {
	Name       string
	TensorInfo TensorInfo
}

// DataLen returns the number of bytes between the data offsets.
func (ti TensorInfo) DataLen() uint64 {
	if ti.DataOffsets[1] < ti.DataOffsets[0] {
		return 0
	}
	return ti.DataOffsets[1] - ti.DataOffsets[0]
}

func (ti TensorInfo) clone() TensorInfo {
	ti.Shape = slices.Clone(ti.Shape)
	return ti
}
