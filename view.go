// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import "github.com/nlpodyssey/safetensors/v2/dtype"

// View is an interface to enable safetensors to serialize a tensor.
//
// Implementations may keep their bytes anywhere: Data is only called
// once the whole layout has been planned, right when the bytes are
// about to be written.
type View interface {
	// The DType of the tensor.
	DType() dtype.DType

	// The Shape of the tensor.
	Shape() []uint64

	// The Data of the tensor.
	Data() []byte

	// DataLen returns the length of the data in bytes.
	//
	// This is necessary as this might be faster to get than `len(Data())`.
	DataLen() uint64
}

// NamedView is a pair of a View and its name (or label, or key).
type NamedView[V View] struct {
	Name string
	View V
}
