// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/safetensors/v2/dtype"
)

var (
	// ErrHeaderTooSmall is returned when the buffer cannot even hold the
	// 8-byte header length.
	ErrHeaderTooSmall = errors.New("header too small")
	// ErrHeaderTooLarge is returned when the header length exceeds
	// MaxHeaderSize.
	ErrHeaderTooLarge = errors.New("header too large")
	// ErrInvalidHeaderLength is returned when the declared header length
	// goes beyond the end of the buffer.
	ErrInvalidHeaderLength = errors.New("invalid header length")
	// ErrTensorInvalidInfo is returned when the byte length of a tensor
	// disagrees with its shape and data type.
	ErrTensorInvalidInfo = errors.New("invalid shape, data type, or offset for tensor")
	// ErrMetadataIncompleteBuffer is returned when the tensors do not cover
	// the byte-buffer exactly.
	ErrMetadataIncompleteBuffer = errors.New("incomplete metadata, file not fully covered")
	// ErrValidationOverflow is returned when an element or byte count does
	// not fit in a uint64.
	ErrValidationOverflow = errors.New("overflow computing buffer size from shape and/or element type")
	// ErrMisalignedSlice is returned when sub-byte data does not end on a
	// byte boundary, or when slicing is attempted on a sub-byte data type.
	ErrMisalignedSlice = errors.New("sub-byte data does not end up at a byte boundary")
	// ErrTooManySlices is returned when more index operations than
	// dimensions are given to the slicing engine.
	ErrTooManySlices = errors.New("more slicing indexes than dimensions in tensor")
	// ErrDuplicateName is returned when two tensors share the same name.
	ErrDuplicateName = errors.New("duplicate tensor name")
)

// InvalidHeaderError reports a header which is not valid UTF-8.
type InvalidHeaderError struct {
	// Offset is the position of the first invalid byte, relative to the
	// start of the header.
	Offset int
}

func (e *InvalidHeaderError) Error() string {
	return fmt.Sprintf("invalid UTF-8 in header at byte offset %d", e.Offset)
}

// HeaderDeserializationError reports a header which does not conform to
// the JSON schema.
type HeaderDeserializationError struct {
	Err error
}

func (e *HeaderDeserializationError) Error() string {
	return "invalid JSON in header: " + e.Err.Error()
}

func (e *HeaderDeserializationError) Unwrap() error { return e.Err }

// JSONError reports a failure while encoding the header.
type JSONError struct {
	Err error
}

func (e *JSONError) Error() string {
	return "JSON error: " + e.Err.Error()
}

func (e *JSONError) Unwrap() error { return e.Err }

// TensorNotFoundError is returned when looking up a missing tensor.
type TensorNotFoundError struct {
	Name string
}

func (e *TensorNotFoundError) Error() string {
	return fmt.Sprintf("tensor %q not found", e.Name)
}

// InvalidOffsetError reports a tensor whose data offsets do not follow
// the previous tensor.
type InvalidOffsetError struct {
	Name string
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("invalid offset for tensor %q", e.Name)
}

// InvalidTensorViewError is returned by NewTensorView when the data length
// does not match the data type and shape.
type InvalidTensorViewError struct {
	DType dtype.DType
	Shape []uint64
	Len   int
}

func (e *InvalidTensorViewError) Error() string {
	return fmt.Sprintf("tensor of type %s and shape %v can't be created from %d bytes", e.DType, e.Shape, e.Len)
}

// SliceOutOfRangeError is returned when an index operation selects
// coordinates outside of a tensor dimension.
type SliceOutOfRangeError struct {
	// DimIndex is the position of the offending dimension.
	DimIndex int
	// Asked is the resolved start when it is beyond the dimension,
	// otherwise the resolved end.
	Asked uint64
	// DimSize is the extent of the dimension.
	DimSize uint64
}

func (e *SliceOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of bounds for tensor dimension #%d of size %d", e.Asked, e.DimIndex, e.DimSize)
}
