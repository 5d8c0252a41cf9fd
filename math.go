// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"fmt"
	"math"
	"math/bits"
)

// checkedMul multiplies a and b and checks for overflow.
func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return lo, fmt.Errorf("multiplication overflow: %d * %d", a, b)
	}
	return lo, nil
}

// checkedAdd adds a and b and checks for overflow.
func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return sum, fmt.Errorf("addition overflow: %d + %d", a, b)
	}
	return sum, nil
}

// checkedAddNonNegInt64 adds two non-negative int64 values, failing if
// the result does not fit in an int64.
func checkedAddNonNegInt64(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("unexpected negative number")
	}
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 || sum > math.MaxInt64 {
		return 0, fmt.Errorf("int64 sum overflow: %d + %d", a, b)
	}
	return int64(sum), nil
}

// numElements returns the product of the dimensions of shape. An empty
// shape describes a scalar, holding one element.
func numElements(shape []uint64) (uint64, error) {
	n := uint64(1)
	for _, v := range shape {
		var err error
		if n, err = checkedMul(n, v); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// byteLen returns the number of bytes needed to store n elements of the
// given bit size. It fails if the bits do not fill whole bytes.
func byteLen(n uint64, bitSize int) (uint64, error) {
	nbits, err := checkedMul(n, uint64(bitSize))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrValidationOverflow, err)
	}
	if nbits%8 != 0 {
		return 0, ErrMisalignedSlice
	}
	return nbits / 8, nil
}
