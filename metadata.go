// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"fmt"

	"github.com/nlpodyssey/safetensors/v2/header"
)

// Metadata represents the header of safetensor files which allow
// indexing into the raw byte-buffer array and indicates how to interpret it.
//
// A Metadata value is always valid: tensors are contiguous, in
// byte-buffer order, and each one is exactly as long as its data type and
// shape require. It is never modified after construction.
type Metadata struct {
	metadata map[string]string
	tensors  []TensorInfo
	names    []string
	indexMap map[string]int
	dataLen  uint64
}

// NewMetadata builds and validates a Metadata. The tensors must be listed
// in byte-buffer order.
func NewMetadata(metadata map[string]string, tensors []NamedTensorInfo) (Metadata, error) {
	indexMap := make(map[string]int, len(tensors))
	infos := make([]TensorInfo, len(tensors))
	names := make([]string, len(tensors))

	for i, v := range tensors {
		if v.Name == header.MetadataKey {
			return Metadata{}, fmt.Errorf("tensor name %q is reserved", v.Name)
		}
		if _, ok := indexMap[v.Name]; ok {
			return Metadata{}, fmt.Errorf("%w: %q", ErrDuplicateName, v.Name)
		}
		indexMap[v.Name] = i
		infos[i] = v.TensorInfo
		names[i] = v.Name
	}

	if len(metadata) == 0 {
		metadata = nil
	}
	m := Metadata{
		metadata: metadata,
		tensors:  infos,
		names:    names,
		indexMap: indexMap,
	}
	dataLen, err := m.validate()
	if err != nil {
		return Metadata{}, err
	}
	m.dataLen = dataLen
	return m, nil
}

// validate the Metadata object.
// In case of success, it returns the last seen offset position, that should
// correspond to the end of the data buffer.
func (m Metadata) validate() (uint64, error) {
	start := uint64(0)
	for i, info := range m.tensors {
		s := info.DataOffsets[0]
		e := info.DataOffsets[1]

		if s != start || e < s {
			return 0, &InvalidOffsetError{Name: m.names[i]}
		}
		start = e

		if err := info.DType.Validate(); err != nil {
			return 0, fmt.Errorf("tensor %q: %w", m.names[i], err)
		}
		n, err := numElements(info.Shape)
		if err != nil {
			return 0, fmt.Errorf("%w: tensor %q: %w", ErrValidationOverflow, m.names[i], err)
		}
		size, err := byteLen(n, info.DType.BitSize())
		if err != nil {
			return 0, fmt.Errorf("tensor %q: %w", m.names[i], err)
		}
		if e-s != size {
			return 0, fmt.Errorf("%w %q", ErrTensorInvalidInfo, m.names[i])
		}
	}
	return start, nil
}

// Info returns the TensorInfo of the named tensor, and whether it exists.
// The returned Shape is a copy.
func (m Metadata) Info(name string) (TensorInfo, bool) {
	index, ok := m.indexMap[name]
	if !ok {
		return TensorInfo{}, false
	}
	return m.tensors[index].clone(), true
}

// offsets returns the data offsets of the named tensor.
func (m Metadata) offsets(name string) ([2]uint64, bool) {
	index, ok := m.indexMap[name]
	if !ok {
		return [2]uint64{}, false
	}
	return m.tensors[index].DataOffsets, true
}

// Tensors returns all tensors' info. Shapes are copies.
func (m Metadata) Tensors() map[string]TensorInfo {
	result := make(map[string]TensorInfo, len(m.indexMap))
	for name, index := range m.indexMap {
		result[name] = m.tensors[index].clone()
	}
	return result
}

// OffsetKeys returns the tensor names sorted by data offsets.
func (m Metadata) OffsetKeys() []string {
	return append([]string(nil), m.names...)
}

// DataLen returns the length of the byte-buffer described by the
// Metadata, that is the end offset of the last tensor.
func (m Metadata) DataLen() uint64 {
	return m.dataLen
}

// Metadata returns the free-form key/value string pairs. It can be nil.
func (m Metadata) Metadata() map[string]string {
	return m.metadata
}

// Len returns the number of tensors.
func (m Metadata) Len() int {
	return len(m.tensors)
}

// MarshalJSON encodes the Metadata as a safetensors header, without
// padding. The free-form metadata comes first, then the tensors in
// byte-buffer order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return m.header().MarshalJSON()
}

// UnmarshalJSON decodes and validates a safetensors header.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	h, err := header.Decode(data)
	if err != nil {
		return err
	}
	parsed, err := metadataFromHeader(h)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Metadata) header() header.Header {
	h := header.Header{
		Metadata: m.metadata,
		Tensors:  make(header.TensorSlice, len(m.tensors)),
	}
	for i, info := range m.tensors {
		h.Tensors[i] = header.Tensor{
			Name:        m.names[i],
			DType:       info.DType,
			Shape:       info.Shape,
			DataOffsets: header.DataOffsets{Begin: info.DataOffsets[0], End: info.DataOffsets[1]},
		}
	}
	return h
}

// metadataFromHeader converts a decoded header, already sorted by data
// offsets, and validates it.
func metadataFromHeader(h header.Header) (Metadata, error) {
	tensors := make([]NamedTensorInfo, len(h.Tensors))
	for i, t := range h.Tensors {
		tensors[i] = NamedTensorInfo{
			Name: t.Name,
			TensorInfo: TensorInfo{
				DType:       t.DType,
				Shape:       t.Shape,
				DataOffsets: [2]uint64{t.DataOffsets.Begin, t.DataOffsets.End},
			},
		}
	}
	return NewMetadata(h.Metadata, tensors)
}
