// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"bytes"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// MaxHeaderSize is the largest accepted header length, in bytes.
const MaxHeaderSize = 100_000_000

// Layout is the complete arrangement of a safetensors file, as computed
// by Plan before any byte is written.
type Layout[V View] struct {
	// Header is the JSON header, padded with spaces to a multiple of 8.
	Header []byte
	// Tensors are in byte-buffer order.
	Tensors []NamedView[V]
	// DataLen is the length of the byte-buffer.
	DataLen uint64
	// Metadata describes the Tensors and their offsets.
	Metadata Metadata
}

// Size returns the total length of the file: header size, header, and
// byte-buffer.
func (l Layout[V]) Size() uint64 {
	return 8 + uint64(len(l.Header)) + l.DataLen
}

// Plan arranges the given tensors and free-form metadata.
//
// Tensors are sorted by descending data type alignment, then by name, and
// placed one after the other, with no gap between them. Only the DType,
// Shape and DataLen methods of each View are called.
func Plan[V View](data map[string]V, metadata map[string]string) (Layout[V], error) {
	// Make sure we're sorting by descending dtype alignment,
	// then by name.
	tensors := make([]NamedView[V], 0, len(data))
	for k, v := range data {
		tensors = append(tensors, NamedView[V]{Name: k, View: v})
	}
	sort.Slice(tensors, func(i, j int) bool {
		l, r := &tensors[i], &tensors[j]
		ldt, rdt := l.View.DType(), r.View.DType()
		return ldt > rdt || (ldt == rdt && l.Name < r.Name)
	})

	infos := make([]NamedTensorInfo, len(tensors))
	offset := uint64(0)
	for i, nv := range tensors {
		end, err := checkedAdd(offset, nv.View.DataLen())
		if err != nil {
			return Layout[V]{}, fmt.Errorf("%w: %w", ErrValidationOverflow, err)
		}
		infos[i] = NamedTensorInfo{
			Name: nv.Name,
			TensorInfo: TensorInfo{
				DType:       nv.View.DType(),
				Shape:       nv.View.Shape(),
				DataOffsets: [2]uint64{offset, end},
			},
		}
		offset = end
	}

	meta, err := NewMetadata(metadata, infos)
	if err != nil {
		return Layout[V]{}, err
	}

	headerBytes, err := meta.MarshalJSON()
	if err != nil {
		return Layout[V]{}, &JSONError{Err: err}
	}
	// Force alignment to 8 bytes.
	if extra := (8 - len(headerBytes)%8) % 8; extra > 0 {
		headerBytes = append(headerBytes, bytes.Repeat([]byte{' '}, extra)...)
	}
	if len(headerBytes) > MaxHeaderSize {
		return Layout[V]{}, fmt.Errorf("%w: max %d, actual %d", ErrHeaderTooLarge, MaxHeaderSize, len(headerBytes))
	}

	Logger().Debug("planned safetensors layout",
		zap.Int("tensors", len(tensors)),
		zap.Int("header_size", len(headerBytes)),
		zap.Uint64("data_len", offset))

	return Layout[V]{
		Header:   headerBytes,
		Tensors:  tensors,
		DataLen:  offset,
		Metadata: meta,
	}, nil
}

// dataReader is implemented by views which load their data on demand
// and can report why loading failed.
type dataReader interface {
	ReadData() ([]byte, error)
}

// tensorData returns the bytes of a planned tensor, making sure the View
// delivers exactly the declared amount.
func tensorData[V View](nv NamedView[V]) ([]byte, error) {
	var data []byte
	if r, ok := any(nv.View).(dataReader); ok {
		var err error
		if data, err = r.ReadData(); err != nil {
			return nil, fmt.Errorf("tensor %q: %w", nv.Name, err)
		}
	} else {
		data = nv.View.Data()
	}
	if n := uint64(len(data)); n != nv.View.DataLen() {
		return nil, fmt.Errorf("tensor %q: expected %d data bytes, actual %d", nv.Name, nv.View.DataLen(), n)
	}
	return data, nil
}
