// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package safetensors implements the safetensors file format: a JSON
// header describing named tensors, followed by their raw bytes.
//
// Reading is zero-copy: every TensorView refers directly to the
// byte-buffer it was deserialized from, which can be a memory-mapped
// file (see OpenFile). Writing (see Serialize and WriteFile) places
// tensors by descending data type alignment, then by name.
package safetensors

import (
	"encoding/binary"
	"fmt"
	"iter"
	"unicode/utf8"

	"github.com/nlpodyssey/safetensors/v2/header"
)

// SafeTensors is a structure owning some metadata to lookup tensors
// on a shared `data` byte-buffer.
type SafeTensors struct {
	metadata Metadata
	data     []byte
}

// Deserialize parses a byte-buffer representing the whole
// safetensor file and returns the deserialized form (no tensor allocation).
func Deserialize(buffer []byte) (SafeTensors, error) {
	n, metadata, err := ReadMetadata(buffer)
	if err != nil {
		return SafeTensors{}, err
	}
	return SafeTensors{
		metadata: metadata,
		data:     buffer[n+8:],
	}, nil
}

// ReadMetadata parses the header and returns the size of the header + parsed
// data, given a byte-buffer representing the whole safetensor file.
//
// The buffer must be covered exactly: no data is allowed after the last
// tensor.
func ReadMetadata(buffer []byte) (uint64, Metadata, error) {
	bufferLen := uint64(len(buffer))
	if bufferLen < 8 {
		return 0, Metadata{}, ErrHeaderTooSmall
	}

	n := binary.LittleEndian.Uint64(buffer[:8])
	if n > MaxHeaderSize {
		return 0, Metadata{}, fmt.Errorf("%w: max %d, actual %d", ErrHeaderTooLarge, MaxHeaderSize, n)
	}

	stop, err := checkedAdd(n, 8)
	if err != nil || stop > bufferLen {
		return 0, Metadata{}, ErrInvalidHeaderLength
	}

	metadata, err := parseHeader(buffer[8:stop])
	if err != nil {
		return 0, Metadata{}, err
	}
	if end, err := checkedAdd(stop, metadata.DataLen()); err != nil || end != bufferLen {
		return 0, Metadata{}, ErrMetadataIncompleteBuffer
	}
	return n, metadata, nil
}

// parseHeader decodes and validates the header bytes, padding included.
func parseHeader(b []byte) (Metadata, error) {
	if !utf8.Valid(b) {
		return Metadata{}, &InvalidHeaderError{Offset: invalidUTF8Offset(b)}
	}
	h, err := header.Decode(b)
	if err != nil {
		return Metadata{}, &HeaderDeserializationError{Err: err}
	}
	return metadataFromHeader(h)
}

func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}

// Tensors returns a list of named views of all tensors, in byte-buffer
// order.
func (st SafeTensors) Tensors() []NamedTensorView {
	tensors := make([]NamedTensorView, len(st.metadata.tensors))
	for i, info := range st.metadata.tensors {
		tensors[i] = NamedTensorView{
			Name:       st.metadata.names[i],
			TensorView: newTensorView(info, st.data),
		}
	}
	return tensors
}

// Iter returns a sequence of all tensors, in byte-buffer order.
// Every call returns a new sequence.
func (st SafeTensors) Iter() iter.Seq2[string, TensorView] {
	return func(yield func(string, TensorView) bool) {
		for i, info := range st.metadata.tensors {
			if !yield(st.metadata.names[i], newTensorView(info, st.data)) {
				return
			}
		}
	}
}

// Tensor allows the user to get the view of a specific tensor by name.
// It returns a *TensorNotFoundError if there is no such tensor.
func (st SafeTensors) Tensor(name string) (TensorView, error) {
	info, ok := st.metadata.Info(name)
	if !ok {
		return TensorView{}, &TensorNotFoundError{Name: name}
	}
	return newTensorView(info, st.data), nil
}

// The Names of all tensors, in byte-buffer order.
func (st SafeTensors) Names() []string {
	return st.metadata.OffsetKeys()
}

// Len returns how many tensors are currently stored within the SafeTensors.
func (st SafeTensors) Len() int {
	return len(st.metadata.tensors)
}

// IsEmpty reports whether the SafeTensors contains any tensor.
func (st SafeTensors) IsEmpty() bool {
	return len(st.metadata.tensors) == 0
}

// Metadata returns the parsed header.
func (st SafeTensors) Metadata() Metadata {
	return st.metadata
}
