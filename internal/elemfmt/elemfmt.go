// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elemfmt renders single tensor elements as text.
package elemfmt

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/nlpodyssey/safetensors/v2/dtype"
	"github.com/nlpodyssey/safetensors/v2/float16"
)

// Format renders the little-endian element b of type dt.
//
// Sub-byte types are not addressable one element at a time, and are
// rejected together with invalid types.
func Format(dt dtype.DType, b []byte) (string, error) {
	if err := dt.Validate(); err != nil {
		return "", err
	}
	if dt.IsSubByte() {
		return "", fmt.Errorf("cannot format single elements of type %s", dt)
	}
	if size := dt.Size(); len(b) != size {
		return "", fmt.Errorf("%s element must be %d bytes long, got %d", dt, size, len(b))
	}

	le := binary.LittleEndian
	switch dt {
	case dtype.Bool:
		return strconv.FormatBool(b[0] != 0), nil
	case dtype.U8:
		return strconv.FormatUint(uint64(b[0]), 10), nil
	case dtype.I8:
		return strconv.FormatInt(int64(int8(b[0])), 10), nil
	case dtype.F8E5M2:
		return formatFloat(float16.F16(uint16(b[0]) << 8).Float32()), nil
	case dtype.F8E4M3:
		return formatFloat(f8e4m3(b[0])), nil
	case dtype.F8E8M0:
		return formatFloat(f8e8m0(b[0])), nil
	case dtype.I16:
		return strconv.FormatInt(int64(int16(le.Uint16(b))), 10), nil
	case dtype.U16:
		return strconv.FormatUint(uint64(le.Uint16(b)), 10), nil
	case dtype.F16:
		return formatFloat(float16.DecodeF16(b).Float32()), nil
	case dtype.BF16:
		return formatFloat(float16.DecodeBF16(b).Float32()), nil
	case dtype.I32:
		return strconv.FormatInt(int64(int32(le.Uint32(b))), 10), nil
	case dtype.U32:
		return strconv.FormatUint(uint64(le.Uint32(b)), 10), nil
	case dtype.F32:
		return formatFloat(math.Float32frombits(le.Uint32(b))), nil
	case dtype.C64:
		c := complex(math.Float32frombits(le.Uint32(b)), math.Float32frombits(le.Uint32(b[4:])))
		return strconv.FormatComplex(complex128(c), 'g', -1, 64), nil
	case dtype.F64:
		return strconv.FormatFloat(math.Float64frombits(le.Uint64(b)), 'g', -1, 64), nil
	case dtype.I64:
		return strconv.FormatInt(int64(le.Uint64(b)), 10), nil
	case dtype.U64:
		return strconv.FormatUint(le.Uint64(b), 10), nil
	default:
		return "", fmt.Errorf("cannot format elements of type %s", dt)
	}
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

// f8e4m3 decodes the "FN" variant: no infinities, a single NaN mantissa.
func f8e4m3(b byte) float32 {
	exp := int(b>>3) & 0xf
	mant := float32(b & 0x7)
	var v float32
	switch {
	case exp == 0xf && mant == 7:
		return float32(math.NaN())
	case exp == 0:
		v = mant / 8 * float32(math.Ldexp(1, -6))
	default:
		v = (1 + mant/8) * float32(math.Ldexp(1, exp-7))
	}
	if b&0x80 != 0 {
		v = -v
	}
	return v
}

func f8e8m0(b byte) float32 {
	if b == 0xff {
		return float32(math.NaN())
	}
	return float32(math.Ldexp(1, int(b)-127))
}
