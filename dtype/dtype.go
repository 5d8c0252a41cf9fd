// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dtype provides the element types supported by the safetensors
// format, together with their bit widths.
package dtype

import (
	"fmt"
	"strconv"
)

// DType represents a safetensors data type.
//
// DType values MUST be in increasing alignment order: the serializer
// relies on comparing them with "<" to place the most demanding tensors
// first within the byte-buffer.
type DType uint8

const (
	// Bool represents an 8-bit boolean data type.
	Bool DType = iota + 1
	// F4 represents a 4-bit MXFP4 floating point data type.
	F4
	// F6E2M3 represents a 6-bit MXFP6 floating point data type
	// (2 exponent bits, 3 mantissa bits).
	F6E2M3
	// F6E3M2 represents a 6-bit MXFP6 floating point data type
	// (3 exponent bits, 2 mantissa bits).
	F6E3M2
	// U8 represents an 8-bit unsigned integer data type.
	U8
	// I8 represents an 8-bit signed integer data type.
	I8
	// F8E5M2 represents an 8-bit FP8 floating point data type
	// (5 exponent bits, 2 mantissa bits).
	F8E5M2
	// F8E4M3 represents an 8-bit FP8 floating point data type
	// (4 exponent bits, 3 mantissa bits).
	F8E4M3
	// F8E8M0 represents an 8-bit MX scale data type (exponent only).
	F8E8M0
	// I16 represents a 16-bit signed integer data type.
	I16
	// U16 represents a 16-bit unsigned integer data type.
	U16
	// F16 represents a 16-bit half-precision floating point data type.
	F16
	// BF16 represents a 16-bit brain floating point data type.
	BF16
	// I32 represents a 32-bit signed integer data type.
	I32
	// U32 represents a 32-bit unsigned integer data type.
	U32
	// F32 represents a 32-bit floating point data type.
	F32
	// C64 represents a 64-bit complex data type (two F32 parts).
	C64
	// F64 represents a 64-bit floating point data type.
	F64
	// I64 represents a 64-bit signed integer data type.
	I64
	// U64 represents a 64-bit unsigned integer data type.
	U64
)

var (
	dTypeToString = [...]string{
		Bool:   "BOOL",
		F4:     "F4",
		F6E2M3: "F6_E2M3",
		F6E3M2: "F6_E3M2",
		U8:     "U8",
		I8:     "I8",
		F8E5M2: "F8_E5M2",
		F8E4M3: "F8_E4M3",
		F8E8M0: "F8_E8M0",
		I16:    "I16",
		U16:    "U16",
		F16:    "F16",
		BF16:   "BF16",
		I32:    "I32",
		U32:    "U32",
		F32:    "F32",
		C64:    "C64",
		F64:    "F64",
		I64:    "I64",
		U64:    "U64",
	}
	dTypeToBitSize = [...]int{
		Bool:   8,
		F4:     4,
		F6E2M3: 6,
		F6E3M2: 6,
		U8:     8,
		I8:     8,
		F8E5M2: 8,
		F8E4M3: 8,
		F8E8M0: 8,
		I16:    16,
		U16:    16,
		F16:    16,
		BF16:   16,
		I32:    32,
		U32:    32,
		F32:    32,
		C64:    64,
		F64:    64,
		I64:    64,
		U64:    64,
	}
	stringToDType = func() map[string]DType {
		m := make(map[string]DType, len(dTypeToString)-1)
		for dt, s := range dTypeToString {
			if s != "" {
				m[s] = DType(dt)
			}
		}
		return m
	}()
)

// Values returns all valid DType values, in increasing alignment order.
func Values() []DType {
	values := make([]DType, 0, U64)
	for dt := Bool; dt <= U64; dt++ {
		values = append(values, dt)
	}
	return values
}

// Parse converts a safetensors dtype tag (such as "F32" or "F8_E4M3")
// to its DType value.
func Parse(s string) (DType, error) {
	dt, ok := stringToDType[s]
	if !ok {
		return 0, fmt.Errorf("invalid DType string value %q", s)
	}
	return dt, nil
}

// Validate returns an error if the DType is not valid, otherwise nil.
func (dt DType) Validate() error {
	if dt == 0 || dt > U64 {
		return fmt.Errorf("invalid DType(%d)", dt)
	}
	return nil
}

// String returns the safetensors tag of a DType.
func (dt DType) String() string {
	if err := dt.Validate(); err != nil {
		return err.Error()
	}
	return dTypeToString[dt]
}

// BitSize returns the size in bits of one element of this data type,
// or -1 if the DType value is invalid.
func (dt DType) BitSize() int {
	if err := dt.Validate(); err != nil {
		return -1
	}
	return dTypeToBitSize[dt]
}

// Size returns the size in bytes of one element of this data type,
// rounded up for sub-byte types, or -1 if the DType value is invalid.
//
// Prefer BitSize when computing buffer sizes: F4 and F6 elements do not
// occupy a whole byte each.
func (dt DType) Size() int {
	bits := dt.BitSize()
	if bits < 0 {
		return -1
	}
	return (bits + 7) / 8
}

// IsSubByte reports whether elements of this type are narrower than a byte.
func (dt DType) IsSubByte() bool {
	bits := dt.BitSize()
	return bits > 0 && bits%8 != 0
}

// MarshalJSON satisfies json.Marshaler interface.
func (dt DType) MarshalJSON() ([]byte, error) {
	if err := dt.Validate(); err != nil {
		return nil, err
	}
	return []byte(strconv.Quote(dTypeToString[dt])), nil
}

// UnmarshalJSON satisfies json.Unmarshaler interface.
func (dt *DType) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("failed to JSON-unmarshal DType from value %q", string(b))
	}
	v, ok := stringToDType[s]
	if !ok {
		return fmt.Errorf("failed to JSON-unmarshal DType from value %q", string(b))
	}
	*dt = v
	return nil
}

// MarshalText satisfies encoding.TextMarshaler interface.
func (dt DType) MarshalText() ([]byte, error) {
	if err := dt.Validate(); err != nil {
		return nil, err
	}
	return []byte(dTypeToString[dt]), nil
}

// UnmarshalText satisfies encoding.TextUnmarshaler interface.
func (dt *DType) UnmarshalText(text []byte) error {
	v, ok := stringToDType[string(text)]
	if !ok {
		return fmt.Errorf("failed to text-unmarshal DType from value %q", string(text))
	}
	*dt = v
	return nil
}
