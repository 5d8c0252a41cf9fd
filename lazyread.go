// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"fmt"
	"io"
	"sync"

	"github.com/nlpodyssey/safetensors/v2/dtype"
	"github.com/nlpodyssey/safetensors/v2/header"
	"go.uber.org/zap"
)

// LazyST (short for "LazySafeTensors") allows to read safetensors content
// lazy-loading data of individual tensors.
type LazyST struct {
	src      *lazySource
	metadata Metadata
}

// lazySource serializes seek-and-read operations on a shared io.ReadSeeker.
type lazySource struct {
	mu sync.Mutex
	rs io.ReadSeeker
	// dataOffset is the byte-buffer offset relative to the start of rs
	dataOffset int64
}

// LazyTensor provides information about a tensor and allows lazy loading
// its data.
//
// It only retains in-memory information from the safetensors header, and only
// small references to know how to retrieve the tensor's data later
// (lazy loading).
//
// LazyTensor satisfies the View interface: a LazyST can be serialized
// again without loading all tensors in memory at once.
type LazyTensor struct {
	src  *lazySource
	name string
	info TensorInfo
}

var _ View = LazyTensor{}

// NewLazy reads from "rs" the safetensors header and validates it, then
// returns a new LazyST in case of success, otherwise nil and an error.
//
// If headerSizeLimit is set to a positive number, its value is used to
// limit the reading of safetensors header. This can be useful to guard
// against attacks or tampered/garbage data, avoiding giant memory allocations
// to hold header information. A value of zero, or a negative number, have
// no limiting effects other than MaxHeaderSize.
//
// The current "seek" position of "rs" is used as a base for all further
// seek-based operations to read tensor data. The byte-buffer must extend
// exactly to the end of "rs".
//
// In order to allow lazy loading of tensors data, the given io.ReadSeeker
// must remain available for operations as long as you are handling
// a LazyST object and any LazyTensor obtained from it. For example,
// if the given "rs" is a file, it should not be closed until you got all
// the tensor data you need.
func NewLazy(rs io.ReadSeeker, headerSizeLimit int) (*LazyST, error) {
	initialOffset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to get initial offset: %w", err)
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to seek to end of data: %w", err)
	}
	if _, err = rs.Seek(initialOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to initial offset: %w", err)
	}
	available := uint64(max(end-initialOffset, 0))

	n, metadata, err := readLazyHeader(rs, headerSizeLimit, available)
	if err != nil {
		return nil, fmt.Errorf("failed to read safetensors header: %w", err)
	}

	dataOffset, err := checkedAddNonNegInt64(initialOffset, int64(8+n))
	if err != nil {
		return nil, fmt.Errorf("failed to calculate total byte-buffer offset: %w", err)
	}
	if uint64(end-dataOffset) != metadata.DataLen() {
		return nil, fmt.Errorf("%w: byte-buffer length %d, expected %d", ErrMetadataIncompleteBuffer, end-dataOffset, metadata.DataLen())
	}

	Logger().Debug("read safetensors header",
		zap.Uint64("header_size", n),
		zap.Int("tensors", metadata.Len()))

	return &LazyST{
		src:      &lazySource{rs: rs, dataOffset: dataOffset},
		metadata: metadata,
	}, nil
}

// readLazyHeader reads and parses the header from r, which has exactly
// available bytes left.
func readLazyHeader(r io.Reader, headerSizeLimit int, available uint64) (uint64, Metadata, error) {
	n, err := header.ReadSize(r)
	if err != nil {
		return 0, Metadata{}, fmt.Errorf("%w: %w", ErrHeaderTooSmall, err)
	}
	if n > MaxHeaderSize || (headerSizeLimit > 0 && n > uint64(headerSizeLimit)) {
		return 0, Metadata{}, fmt.Errorf("%w: %d", ErrHeaderTooLarge, n)
	}
	if n > available-8 {
		return 0, Metadata{}, fmt.Errorf("%w: %d bytes declared, %d available", ErrInvalidHeaderLength, n, available-8)
	}
	b := make([]byte, n)
	if _, err = io.ReadFull(r, b); err != nil {
		return 0, Metadata{}, fmt.Errorf("%w: %w", ErrInvalidHeaderLength, err)
	}
	metadata, err := parseHeader(b)
	if err != nil {
		return 0, Metadata{}, err
	}
	return n, metadata, nil
}

// Metadata returns the parsed header.
func (st *LazyST) Metadata() Metadata {
	return st.metadata
}

// TensorNames returns the names of all tensors, in byte-buffer order.
//
// If there are no tensors it returns nil, otherwise a new slice of
// strings is allocated and returned.
func (st *LazyST) TensorNames() []string {
	if st.metadata.Len() == 0 {
		return nil
	}
	return st.metadata.OffsetKeys()
}

// LazyTensor returns a LazyTensor by its name, and whether it has been found.
//
// If ok is false, the LazyTensor is the zero-value, and must not be used.
func (st *LazyST) LazyTensor(name string) (_ LazyTensor, ok bool) {
	info, ok := st.metadata.Info(name)
	if !ok {
		return LazyTensor{}, false
	}
	return LazyTensor{src: st.src, name: name, info: info}, true
}

// LazyTensors returns all tensors, in byte-buffer order.
func (st *LazyST) LazyTensors() []LazyTensor {
	tensors := make([]LazyTensor, st.metadata.Len())
	for i, info := range st.metadata.tensors {
		tensors[i] = LazyTensor{src: st.src, name: st.metadata.names[i], info: info}
	}
	return tensors
}

// ReadAll reads the whole byte-buffer in memory, with a single read
// operation, and returns the resulting SafeTensors.
func (st *LazyST) ReadAll() (SafeTensors, error) {
	data, err := st.src.read(0, st.metadata.DataLen())
	if err != nil {
		return SafeTensors{}, err
	}
	return SafeTensors{metadata: st.metadata, data: data}, nil
}

// Name returns the name of the tensor.
func (lt LazyTensor) Name() string {
	return lt.name
}

// DType returns the safetensors-specific data type of the tensor.
func (lt LazyTensor) DType() dtype.DType {
	return lt.info.DType
}

// Shape returns the shape of the tensor.
// The returned value must not be modified.
func (lt LazyTensor) Shape() []uint64 {
	return lt.info.Shape
}

// DataLen returns the length of the tensor data in bytes.
func (lt LazyTensor) DataLen() uint64 {
	return lt.info.DataLen()
}

// Data reads and returns the raw []byte data of the tensor, like
// ReadData. In case of failure, the error is logged and nil is returned.
// Serialize and WriteFile call ReadData instead, and report the error.
func (lt LazyTensor) Data() []byte {
	data, err := lt.ReadData()
	if err != nil {
		Logger().Error("failed to read tensor data", zap.String("tensor", lt.name), zap.Error(err))
		return nil
	}
	return data
}

// ReadData reads and returns the raw []byte data of the tensor.
//
// Safetensors data is expected to be little-endian and row-major ("C")
// ordered. There is no striding.
func (lt LazyTensor) ReadData() ([]byte, error) {
	return lt.src.read(lt.info.DataOffsets[0], lt.info.DataLen())
}

// View reads the data of the tensor and returns a TensorView over it.
func (lt LazyTensor) View() (TensorView, error) {
	data, err := lt.ReadData()
	if err != nil {
		return TensorView{}, err
	}
	return NewTensorView(lt.info.DType, lt.info.Shape, data)
}

// WriteTo reads raw tensor data and copies it to the given io.Writer.
// This method satisfies io.WriterTo interface.
//
// Data is copied with io.CopyN, so, apart from an internal buffer, this
// function does not allocate the entire tensor's data in memory.
func (lt LazyTensor) WriteTo(w io.Writer) (int64, error) {
	size := lt.info.DataLen()
	if size == 0 {
		return 0, nil
	}
	src := lt.src
	src.mu.Lock()
	defer src.mu.Unlock()
	if err := src.seek(lt.info.DataOffsets[0]); err != nil {
		return 0, err
	}
	return io.CopyN(w, src.rs, int64(size))
}

func (s *lazySource) read(offset, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.seek(offset); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(s.rs, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

func (s *lazySource) seek(offset uint64) error {
	abs, err := checkedAddNonNegInt64(s.dataOffset, int64(offset))
	if err != nil {
		return fmt.Errorf("failed to calculate tensor data offset: %w", err)
	}
	if _, err = s.rs.Seek(abs, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to tensor data offset: %w", err)
	}
	return nil
}
