// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"fmt"

	"github.com/nlpodyssey/safetensors/v2/dtype"
)

// TensorView is a view of a Tensor within a file.
//
// It contains references to data within the full byte-buffer
// and is thus a readable view of a single tensor.
type TensorView struct {
	dType dtype.DType
	shape []uint64
	data  []byte
}

// NamedTensorView is a pair of a TensorView and its name (or label, or key).
type NamedTensorView struct {
	Name       string
	TensorView TensorView
}

var _ View = TensorView{}

func (tv TensorView) DType() dtype.DType { return tv.dType }

// Shape returns the shape of the tensor.
// The returned value must not be modified.
func (tv TensorView) Shape() []uint64 { return tv.shape }

// Data returns the tensor bytes, aliasing the underlying buffer.
// The returned value must not be modified.
func (tv TensorView) Data() []byte { return tv.data }

func (tv TensorView) DataLen() uint64 { return uint64(len(tv.data)) }

// NewTensorView creates a new TensorView.
//
// The length of data must match exactly the number of bits required by
// dType and shape. No copy is made.
func NewTensorView(dType dtype.DType, shape []uint64, data []byte) (TensorView, error) {
	if err := dType.Validate(); err != nil {
		return TensorView{}, err
	}
	n, err := numElements(shape)
	if err != nil {
		return TensorView{}, fmt.Errorf("%w: %w", ErrValidationOverflow, err)
	}
	size, err := byteLen(n, dType.BitSize())
	if err != nil {
		return TensorView{}, err
	}
	if uint64(len(data)) != size {
		return TensorView{}, &InvalidTensorViewError{DType: dType, Shape: shape, Len: len(data)}
	}
	return TensorView{
		dType: dType,
		shape: shape,
		data:  data,
	}, nil
}

// SlicedData returns an iterator over the elements selected by indexes,
// one IndexOp per leading dimension.
func (tv TensorView) SlicedData(indexes ...IndexOp) (*SliceIterator, error) {
	return NewSliceIterator(tv, indexes...)
}

// newTensorView builds a TensorView on an already validated range of buffer.
func newTensorView(info TensorInfo, buffer []byte) TensorView {
	s, e := info.DataOffsets[0], info.DataOffsets[1]
	return TensorView{
		dType: info.DType,
		shape: info.Shape,
		data:  buffer[s:e:e],
	}
}
