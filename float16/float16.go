// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package float16 provides the 16-bit floating point types of the
// safetensors format, stored as raw bits, with float32 conversions.
package float16

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// F16 is a 16-bit IEEE 754 half-precision floating-point value,
// represented as raw bits (uint16).
type F16 uint16

// BF16 is a 16-bit brain floating-point value, represented as raw
// bits (uint16).
type BF16 uint16

// F16FromFloat32 converts a float32 to the nearest F16 value.
func F16FromFloat32(f float32) F16 {
	return F16(float16.Fromfloat32(f).Bits())
}

// Float32 converts the value to float32. The conversion is exact.
func (h F16) Float32() float32 {
	return float16.Frombits(uint16(h)).Float32()
}

// BF16FromFloat32 converts a float32 to BF16, rounding to nearest even.
// NaN values are mapped to a quiet NaN.
func BF16FromFloat32(f float32) BF16 {
	x := math.Float32bits(f)
	if math.IsNaN(float64(f)) {
		return BF16(x>>16 | 0x0040)
	}
	x += 0x7fff + (x>>16)&1
	return BF16(x >> 16)
}

// Float32 converts the value to float32. The conversion is exact.
func (b BF16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// DecodeF16 reads a little-endian F16 value from the first two bytes of b.
func DecodeF16(b []byte) F16 {
	return F16(binary.LittleEndian.Uint16(b))
}

// DecodeBF16 reads a little-endian BF16 value from the first two bytes of b.
func DecodeBF16(b []byte) BF16 {
	return BF16(binary.LittleEndian.Uint16(b))
}
