// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"fmt"
	"iter"
	"math"
)

type boundKind uint8

const (
	unbounded boundKind = iota
	included
	excluded
)

// Bound is one end of a range selection on a tensor dimension.
type Bound struct {
	kind boundKind
	n    uint64
}

// Included returns a Bound including the coordinate n.
func Included(n uint64) Bound { return Bound{kind: included, n: n} }

// Excluded returns a Bound excluding the coordinate n.
func Excluded(n uint64) Bound { return Bound{kind: excluded, n: n} }

// Unbounded returns a Bound extending to the edge of the dimension.
func Unbounded() Bound { return Bound{} }

// IndexOp selects coordinates along one tensor dimension: either a
// single index, or a contiguous range.
type IndexOp struct {
	single bool
	index  uint64
	start  Bound
	end    Bound
}

// Index selects the single coordinate i.
func Index(i uint64) IndexOp { return IndexOp{single: true, index: i} }

// Span selects the coordinates between start and end.
func Span(start, end Bound) IndexOp { return IndexOp{start: start, end: end} }

// Range selects the coordinates in [start, end).
func Range(start, end uint64) IndexOp { return Span(Included(start), Excluded(end)) }

// RangeInclusive selects the coordinates in [start, end].
func RangeInclusive(start, end uint64) IndexOp { return Span(Included(start), Included(end)) }

// RangeFrom selects the coordinates from start to the end of the dimension.
func RangeFrom(start uint64) IndexOp { return Span(Included(start), Unbounded()) }

// RangeTo selects the coordinates in [0, end).
func RangeTo(end uint64) IndexOp { return Span(Unbounded(), Excluded(end)) }

// RangeToInclusive selects the coordinates in [0, end].
func RangeToInclusive(end uint64) IndexOp { return Span(Unbounded(), Included(end)) }

// Full selects the whole dimension.
func Full() IndexOp { return IndexOp{} }

// String formats the IndexOp with Python-like slice notation.
func (op IndexOp) String() string {
	if op.single {
		return fmt.Sprintf("%d", op.index)
	}
	var s string
	switch op.start.kind {
	case included:
		s = fmt.Sprintf("%d", op.start.n)
	case excluded:
		s = fmt.Sprintf("(%d", op.start.n)
	}
	switch op.end.kind {
	case included:
		return s + fmt.Sprintf("..=%d", op.end.n)
	case excluded:
		return s + fmt.Sprintf(":%d", op.end.n)
	}
	return s + ":"
}

// resolve converts the IndexOp into the half-open range [start, end) of a
// dimension of the given size. If the range is out of bounds, ok is
// false and asked is the offending value.
func (op IndexOp) resolve(dimSize uint64) (start, end, asked uint64, ok bool) {
	if op.single {
		if op.index >= dimSize {
			return 0, 0, op.index, false
		}
		return op.index, op.index + 1, 0, true
	}

	switch op.start.kind {
	case included:
		start = op.start.n
	case excluded:
		if op.start.n == math.MaxUint64 {
			return 0, 0, op.start.n, false
		}
		start = op.start.n + 1
	}
	if start >= dimSize {
		return 0, 0, start, false
	}

	switch op.end.kind {
	case included:
		if op.end.n == math.MaxUint64 {
			return 0, 0, op.end.n, false
		}
		end = op.end.n + 1
	case excluded:
		end = op.end.n
	default:
		end = dimSize
	}
	if end > dimSize || start > end {
		return 0, 0, end, false
	}
	return start, end, 0, true
}

// SliceIterator yields, one at a time, the bytes of each element selected
// from a TensorView, in row-major order.
//
// It walks the selection like an odometer: one counter per dimension,
// bounded by the selected extent, with the last dimension moving fastest.
// It is single-pass and not safe for concurrent use.
type SliceIterator struct {
	data      []byte
	elemSize  uint64
	starts    []uint64
	shape     []uint64
	strides   []uint64
	counters  []uint64
	remaining uint64
}

// NewSliceIterator creates a SliceIterator over the elements of view
// selected by indexes. Dimensions without a matching IndexOp are fully
// selected.
func NewSliceIterator(view TensorView, indexes ...IndexOp) (*SliceIterator, error) {
	if err := view.dType.Validate(); err != nil {
		return nil, err
	}
	if view.dType.IsSubByte() {
		return nil, ErrMisalignedSlice
	}
	shape := view.shape
	if len(indexes) > len(shape) {
		return nil, ErrTooManySlices
	}

	rank := len(shape)
	it := &SliceIterator{
		data:      view.data,
		elemSize:  uint64(view.dType.BitSize() / 8),
		starts:    make([]uint64, rank),
		shape:     make([]uint64, rank),
		strides:   make([]uint64, rank),
		counters:  make([]uint64, rank),
		remaining: 1,
	}

	for i, dimSize := range shape {
		start, end := uint64(0), dimSize
		if i < len(indexes) {
			var asked uint64
			var ok bool
			start, end, asked, ok = indexes[i].resolve(dimSize)
			if !ok {
				return nil, &SliceOutOfRangeError{DimIndex: i, Asked: asked, DimSize: dimSize}
			}
		}
		it.starts[i] = start
		it.shape[i] = end - start
		it.remaining *= end - start
	}

	stride := uint64(1)
	for i := rank - 1; i >= 0; i-- {
		it.strides[i] = stride
		stride *= shape[i]
	}

	return it, nil
}

// Next returns the bytes of the next selected element, and false once
// the selection is exhausted. The returned slice aliases the tensor data.
func (it *SliceIterator) Next() ([]byte, bool) {
	if it.remaining == 0 {
		return nil, false
	}

	var address uint64
	for i, c := range it.counters {
		address += (it.starts[i] + c) * it.strides[i]
	}

	for i := len(it.counters) - 1; i >= 0; i-- {
		it.counters[i]++
		if it.counters[i] < it.shape[i] {
			break
		}
		it.counters[i] = 0
	}
	it.remaining--

	begin := address * it.elemSize
	end := begin + it.elemSize
	return it.data[begin:end:end], true
}

// All returns a sequence over the remaining elements. Like Next, it
// consumes the iterator.
func (it *SliceIterator) All() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			b, ok := it.Next()
			if !ok || !yield(b) {
				return
			}
		}
	}
}

// Remaining returns the number of elements not yet returned.
func (it *SliceIterator) Remaining() uint64 {
	return it.remaining
}

// Shape returns the extent of the selection along each dimension,
// single indexes included.
func (it *SliceIterator) Shape() []uint64 {
	return append([]uint64(nil), it.shape...)
}
