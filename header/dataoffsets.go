// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"encoding/json"
	"fmt"
)

// DataOffsets describes "[Begin, End)" byte range of the tensor's data
// within the safetensors byte-buffer.
//
// Tensor data starts at Begin byte index (inclusive) and ends at End byte
// index (exclusive). Both positions are relative to the beginning of the
// byte-buffer, that is, right after the header.
type DataOffsets struct {
	// Begin is the lower bound byte index (included).
	Begin uint64
	// End is the upper bound byte index (excluded).
	End uint64
}

// Len returns End - Begin, or 0 if the range is inverted.
func (a DataOffsets) Len() uint64 {
	if a.End < a.Begin {
		return 0
	}
	return a.End - a.Begin
}

// Less reports whether DataOffsets "a" is ordered before DataOffsets "b".
func (a DataOffsets) Less(b DataOffsets) bool {
	return a.Begin < b.Begin || (a.Begin == b.Begin && a.End < b.End)
}

// UnmarshalJSON deserializes a DataOffsets object from the JSON
// value expected from safetensors format (that is, an array of two numbers).
func (a *DataOffsets) UnmarshalJSON(b []byte) error {
	var decoded []uint64
	if err := json.Unmarshal(b, &decoded); err != nil {
		return err
	}
	if len(decoded) != 2 {
		return fmt.Errorf("invalid data-offsets value: %q", string(b))
	}
	*a = DataOffsets{
		Begin: decoded[0],
		End:   decoded[1],
	}
	return nil
}

// MarshalJSON serializes a DataOffsets object to a value appropriate for
// safetensors format (that is, an array of two numbers).
func (a DataOffsets) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{a.Begin, a.End})
}
