// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nlpodyssey/safetensors/v2/dtype"
)

type rawDecodedHeader map[string]map[string]any

// ReadSize reads the 8-byte little-endian header length which opens
// every safetensors data stream.
func ReadSize(r io.Reader) (uint64, error) {
	var arr [8]byte
	b := arr[:]
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, fmt.Errorf("failed to read header size: %w", err)
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Decode parses the JSON header of a safetensors file.
//
// The input is expected to be exactly the header bytes, padding included.
// Whitespace is allowed after the JSON object, any other trailing
// content is an error. Decoding is strict: tensor objects must have
// exactly the "dtype", "shape" and "data_offsets" keys, numbers must be
// non-negative integers, and metadata values must be strings.
//
// Tensors of the resulting Header are sorted by ascending DataOffsets.
// Note that NO validation is performed on the offsets themselves.
func Decode(data []byte) (Header, error) {
	raw, err := decodeJSON(data)
	if err != nil {
		return Header{}, fmt.Errorf("failed to JSON-decode header: %w", err)
	}
	h, err := convertRawHeader(raw)
	if err != nil {
		return Header{}, err
	}
	// Producers are free to list tensors in any order (older ones sort
	// purely by name), so the byte-buffer order must be recovered here.
	sort.Sort(TensorSliceByDataOffsets{h.Tensors})
	return h, nil
}

func decodeJSON(data []byte) (rawDecodedHeader, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw rawDecodedHeader
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("expected JSON object, actual null")
	}
	// take care of possible padding spaces after JSON object
	if off := dec.InputOffset(); off != int64(len(data)) {
		if _, err := dec.Token(); err == nil {
			return nil, fmt.Errorf("unexpected data at byte offset %d", off)
		} else if err != io.EOF {
			return nil, err
		}
	}
	return raw, nil
}

func convertRawHeader(raw rawDecodedHeader) (h Header, err error) {
	if rawMeta, ok := raw[MetadataKey]; ok {
		delete(raw, MetadataKey)
		if h.Metadata, err = convertRawMetadata(rawMeta); err != nil {
			return
		}
	}
	h.Tensors, err = convertRawTensors(raw)
	return
}

func convertRawMetadata(raw map[string]any) (Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	metadata := make(Metadata, len(raw))
	for key, rawVal := range raw {
		var ok bool
		if metadata[key], ok = rawVal.(string); !ok {
			return nil, fmt.Errorf("failed to interpret header metadata: found non-string value for key %q", key)
		}
	}
	return metadata, nil
}

func convertRawTensors(raw rawDecodedHeader) (TensorSlice, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	tensors := make(TensorSlice, 0, len(raw))
	for key, rawVal := range raw {
		t, err := convertRawTensor(key, rawVal)
		if err != nil {
			return nil, fmt.Errorf("failed to interpret header tensor %q: %w", key, err)
		}
		tensors = append(tensors, t)
	}
	return tensors, nil
}

func convertRawTensor(name string, raw map[string]any) (t Tensor, err error) {
	if raw == nil {
		err = errors.New("expected JSON object, actual null")
		return
	}
	t.Name = name
	if t.DType, err = convertRawTensorDType(raw); err != nil {
		return
	}
	if t.Shape, err = convertRawTensorShape(raw); err != nil {
		return
	}
	if t.DataOffsets, err = convertRawDataOffsets(raw); err != nil {
		return
	}
	if len(raw) != 3 {
		err = errors.New("JSON object contains unknown keys")
	}
	return
}

func convertRawTensorDType(raw map[string]any) (dtype.DType, error) {
	rawDType, ok := raw["dtype"]
	if !ok {
		return 0, errors.New(`"dtype" is missing`)
	}
	strDType, ok := rawDType.(string)
	if !ok {
		return 0, errors.New(`found non-string "dtype" value`)
	}
	dt, err := dtype.Parse(strDType)
	if err != nil {
		return 0, fmt.Errorf(`invalid "dtype" value: %q`, strDType)
	}
	return dt, nil
}

func convertRawTensorShape(raw map[string]any) (Shape, error) {
	rawShape, ok := raw["shape"]
	if !ok {
		return nil, errors.New(`"shape" is missing`)
	}
	rawSlice, ok := rawShape.([]any)
	if !ok {
		return nil, errors.New(`found non-array "shape" value`)
	}
	shape := make(Shape, len(rawSlice))
	for i, rawItem := range rawSlice {
		var err error
		if shape[i], err = convertUint(rawItem); err != nil {
			return nil, fmt.Errorf(`failed to interpret "shape" value at index %d: %w`, i, err)
		}
	}
	return shape, nil
}

func convertRawDataOffsets(raw map[string]any) (DataOffsets, error) {
	rawDataOffsets, ok := raw["data_offsets"]
	if !ok {
		return DataOffsets{}, errors.New(`"data_offsets" is missing`)
	}
	rawSlice, ok := rawDataOffsets.([]any)
	if !ok {
		return DataOffsets{}, errors.New(`found non-array "data_offsets" value`)
	}
	if l := len(rawSlice); l != 2 {
		return DataOffsets{}, fmt.Errorf(`bad "data_offsets" length: expected 2, actual %d`, l)
	}
	var parsed [2]uint64
	for i, rawItem := range rawSlice {
		var err error
		if parsed[i], err = convertUint(rawItem); err != nil {
			return DataOffsets{}, fmt.Errorf(`failed to interpret "data_offsets" value at index %d: %w`, i, err)
		}
	}
	return DataOffsets{Begin: parsed[0], End: parsed[1]}, nil
}

func convertUint(value any) (uint64, error) {
	jNum, ok := value.(json.Number)
	if !ok {
		return 0, errors.New("value is not a number")
	}
	s := jNum.String()
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("value is negative: %s", s)
	}
	num, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to convert value %q to uint64: %w", s, err)
	}
	return num, nil
}
