// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"go.uber.org/zap"
)

// File is a safetensors file mapped read-only in memory.
//
// The embedded SafeTensors, and every TensorView obtained from it, refer
// directly to the mapped memory: they must not be used after Close.
type File struct {
	SafeTensors
	file   *os.File
	mm     mmap.MMap
	closed bool
}

// OpenFile memory-maps the named file and deserializes it.
//
// Always call Close when done, to unmap the file.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var mm mmap.MMap
	if stat.Size() > 0 {
		if mm, err = mmap.Map(f, mmap.RDONLY, 0); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmap failed: %w", err)
		}
	}

	st, err := Deserialize(mm)
	if err != nil {
		if mm != nil {
			_ = mm.Unmap()
		}
		_ = f.Close()
		return nil, err
	}

	Logger().Debug("mapped safetensors file",
		zap.String("file", path),
		zap.Int64("size", stat.Size()),
		zap.Int("tensors", st.Len()))

	return &File{
		SafeTensors: st,
		file:        f,
		mm:          mm,
	}, nil
}

// Close unmaps and closes the file. Calling Close more than once has no
// further effect.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.SafeTensors = SafeTensors{}

	var err error
	if f.mm != nil {
		err = f.mm.Unmap()
		f.mm = nil
	}
	if closeErr := f.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
