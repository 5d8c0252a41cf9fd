// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nlpodyssey/safetensors/v2/dtype"
)

type jsonTensor struct {
	DType       dtype.DType `json:"dtype"`
	Shape       Shape       `json:"shape"`
	DataOffsets DataOffsets `json:"data_offsets"`
}

// MarshalJSON encodes the Header as a compact JSON object.
//
// Unlike a plain map, the key order is fully determined: the metadata
// object comes first (only if not empty), followed by the tensors in
// the same order as h.Tensors. Duplicate tensor names are rejected.
func (h Header) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	seen := make(map[string]struct{}, len(h.Tensors))
	buf.WriteByte('{')
	if len(h.Metadata) > 0 {
		if err := encodeEntry(&buf, enc, MetadataKey, map[string]string(h.Metadata)); err != nil {
			return nil, fmt.Errorf("failed to JSON-encode header metadata: %w", err)
		}
	}
	for _, t := range h.Tensors {
		if t.Name == MetadataKey {
			return nil, fmt.Errorf("tensor name %q is reserved", t.Name)
		}
		if _, ok := seen[t.Name]; ok {
			return nil, fmt.Errorf("duplicate tensor name %q", t.Name)
		}
		seen[t.Name] = struct{}{}

		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		jt := jsonTensor{DType: t.DType, Shape: t.Shape, DataOffsets: t.DataOffsets}
		if err := encodeEntry(&buf, enc, t.Name, jt); err != nil {
			return nil, fmt.Errorf("failed to JSON-encode header tensor %q: %w", t.Name, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeEntry writes `"key":value` to buf. The json.Encoder writes to the
// same buffer, so the newline it appends after each value is trimmed.
func encodeEntry(buf *bytes.Buffer, enc *json.Encoder, key string, value any) error {
	if err := enc.Encode(key); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	buf.WriteByte(':')
	if err := enc.Encode(value); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}
