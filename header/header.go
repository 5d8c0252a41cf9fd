// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package header implements the JSON schema of a safetensors header:
// strict decoding of untrusted input, and deterministic compact encoding.
package header

// MetadataKey is the reserved header key holding free-form metadata.
const MetadataKey = "__metadata__"

// Header provides tensors information and metadata, as defined by
// the safetensors format.
type Header struct {
	Metadata Metadata
	// Tensors are listed in byte-buffer order when the Header comes
	// from Decode, and are encoded in the order they appear.
	Tensors TensorSlice
}

// Metadata is a set of free-form key/value string pairs.
type Metadata map[string]string
