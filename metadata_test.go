// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"encoding/json"
	"testing"

	"github.com/nlpodyssey/safetensors/v2/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ json.Marshaler   = Metadata{}
	_ json.Unmarshaler = &Metadata{}
)

func namedInfo(name string, dt dtype.DType, shape []uint64, begin, end uint64) NamedTensorInfo {
	return NamedTensorInfo{
		Name: name,
		TensorInfo: TensorInfo{
			DType:       dt,
			Shape:       shape,
			DataOffsets: [2]uint64{begin, end},
		},
	}
}

func TestNewMetadata(t *testing.T) {
	m, err := NewMetadata(map[string]string{"foo": "bar"}, []NamedTensorInfo{
		namedInfo("w", dtype.F32, []uint64{2, 3}, 0, 24),
		namedInfo("b", dtype.BF16, []uint64{3}, 24, 30),
		namedInfo("q", dtype.F4, []uint64{4}, 30, 32),
		namedInfo("s", dtype.U8, []uint64{}, 32, 33),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, m.Len())
	assert.Equal(t, uint64(33), m.DataLen())
	assert.Equal(t, []string{"w", "b", "q", "s"}, m.OffsetKeys())
	assert.Equal(t, map[string]string{"foo": "bar"}, m.Metadata())

	info, ok := m.Info("b")
	require.True(t, ok)
	assert.Equal(t, TensorInfo{DType: dtype.BF16, Shape: []uint64{3}, DataOffsets: [2]uint64{24, 30}}, info)
	assert.Equal(t, uint64(6), info.DataLen())

	_, ok = m.Info("missing")
	assert.False(t, ok)

	tensors := m.Tensors()
	assert.Len(t, tensors, 4)
	assert.Equal(t, dtype.F4, tensors["q"].DType)

	keys := m.OffsetKeys()
	keys[0] = "changed"
	assert.Equal(t, "w", m.OffsetKeys()[0])
}

func TestMetadata_Info_returnsCopy(t *testing.T) {
	m, err := NewMetadata(nil, []NamedTensorInfo{
		namedInfo("w", dtype.F32, []uint64{2, 3}, 0, 24),
	})
	require.NoError(t, err)

	info, ok := m.Info("w")
	require.True(t, ok)
	info.Shape[0] = 99
	m.Tensors()["w"].Shape[1] = 99

	info, ok = m.Info("w")
	require.True(t, ok)
	assert.Equal(t, []uint64{2, 3}, info.Shape)

	data, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"shape":[2,3]`)
}

func TestNewMetadata_empty(t *testing.T) {
	m, err := NewMetadata(map[string]string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, uint64(0), m.DataLen())
	assert.Nil(t, m.Metadata())
	assert.Empty(t, m.OffsetKeys())
}

func TestNewMetadata_failure(t *testing.T) {
	t.Run("first offset is not zero", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.U8, []uint64{2}, 1, 3),
		})
		var offsetErr *InvalidOffsetError
		require.ErrorAs(t, err, &offsetErr)
		assert.Equal(t, "a", offsetErr.Name)
	})

	t.Run("gap between tensors", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.U8, []uint64{2}, 0, 2),
			namedInfo("b", dtype.U8, []uint64{2}, 3, 5),
		})
		var offsetErr *InvalidOffsetError
		require.ErrorAs(t, err, &offsetErr)
		assert.Equal(t, "b", offsetErr.Name)
	})

	t.Run("overlapping tensors", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.U8, []uint64{2}, 0, 2),
			namedInfo("b", dtype.U8, []uint64{2}, 1, 3),
		})
		var offsetErr *InvalidOffsetError
		require.ErrorAs(t, err, &offsetErr)
		assert.Equal(t, "b", offsetErr.Name)
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.U8, []uint64{0}, 0, 0),
			namedInfo("b", dtype.U8, []uint64{0}, 0, 0),
			namedInfo("c", dtype.U8, []uint64{2}, 0, 18446744073709551615),
		})
		assert.ErrorIs(t, err, ErrTensorInvalidInfo)

		_, err = NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.U8, []uint64{2}, 2, 0),
		})
		var offsetErr *InvalidOffsetError
		require.ErrorAs(t, err, &offsetErr)
	})

	t.Run("size mismatch", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.I32, []uint64{2, 2}, 0, 15),
		})
		assert.ErrorIs(t, err, ErrTensorInvalidInfo)
		assert.ErrorContains(t, err, `"a"`)
	})

	t.Run("odd number of 4-bit elements", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.F4, []uint64{3}, 0, 2),
		})
		assert.ErrorIs(t, err, ErrMisalignedSlice)
	})

	t.Run("6-bit elements not filling bytes", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.F6E2M3, []uint64{2}, 0, 2),
		})
		assert.ErrorIs(t, err, ErrMisalignedSlice)

		_, err = NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.F6E3M2, []uint64{4}, 0, 3),
		})
		assert.NoError(t, err)
	})

	t.Run("element count overflow", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.U8, []uint64{1 << 32, 1 << 32}, 0, 0),
		})
		assert.ErrorIs(t, err, ErrValidationOverflow)
	})

	t.Run("bit count overflow", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.U64, []uint64{1 << 60}, 0, 0),
		})
		assert.ErrorIs(t, err, ErrValidationOverflow)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", dtype.U8, []uint64{1}, 0, 1),
			namedInfo("a", dtype.U8, []uint64{1}, 1, 2),
		})
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("invalid dtype", func(t *testing.T) {
		_, err := NewMetadata(nil, []NamedTensorInfo{
			namedInfo("a", 0, []uint64{1}, 0, 1),
		})
		assert.EqualError(t, err, `tensor "a": invalid DType(0)`)
	})
}

func TestMetadata_JSON(t *testing.T) {
	m, err := NewMetadata(map[string]string{"k": "v"}, []NamedTensorInfo{
		namedInfo("z", dtype.I64, []uint64{1}, 0, 8),
		namedInfo("a", dtype.U8, []uint64{2}, 8, 10),
	})
	require.NoError(t, err)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t,
		`{"__metadata__":{"k":"v"},`+
			`"z":{"dtype":"I64","shape":[1],"data_offsets":[0,8]},`+
			`"a":{"dtype":"U8","shape":[2],"data_offsets":[8,10]}}`,
		string(b))

	var decoded Metadata
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, m.OffsetKeys(), decoded.OffsetKeys())
	assert.Equal(t, m.Tensors(), decoded.Tensors())
	assert.Equal(t, m.Metadata(), decoded.Metadata())
	assert.Equal(t, m.DataLen(), decoded.DataLen())
}

func TestMetadata_UnmarshalJSON(t *testing.T) {
	t.Run("out of order", func(t *testing.T) {
		var m Metadata
		err := m.UnmarshalJSON([]byte(`{"b":{"dtype":"U8","shape":[1],"data_offsets":[4,5]},` +
			`"a":{"dtype":"F32","shape":[1],"data_offsets":[0,4]}}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, m.OffsetKeys())
		assert.Equal(t, uint64(5), m.DataLen())
	})

	t.Run("invalid", func(t *testing.T) {
		m, err := NewMetadata(nil, []NamedTensorInfo{namedInfo("x", dtype.U8, []uint64{1}, 0, 1)})
		require.NoError(t, err)
		err = m.UnmarshalJSON([]byte(`{"a":{"dtype":"F32","shape":[1],"data_offsets":[0,3]}}`))
		assert.ErrorIs(t, err, ErrTensorInvalidInfo)
		assert.Equal(t, []string{"x"}, m.OffsetKeys())
	})

	t.Run("malformed", func(t *testing.T) {
		var m Metadata
		err := m.UnmarshalJSON([]byte(`{"a":`))
		assert.Error(t, err)
	})
}
