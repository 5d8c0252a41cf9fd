// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBufferSize is the size of the write buffer used by WriteFile
// when FileOptions.BufferSize is not set.
const DefaultBufferSize = 1 << 20

// FileOptions controls how WriteFile writes a safetensors file.
type FileOptions struct {
	// BufferSize is the size of the write buffer. Zero or negative values
	// select DefaultBufferSize.
	BufferSize int
	// Workers is the maximum number of tensors written at the same time.
	// Values lower than 2 write the file sequentially.
	Workers int
	// NoCache asks the operating system not to keep the written data in
	// its page cache, where supported.
	NoCache bool
}

// Serialize the dictionary of tensors to a byte buffer.
func Serialize[V View](data map[string]V, metadata map[string]string) ([]byte, error) {
	layout, err := Plan(data, metadata)
	if err != nil {
		return nil, err
	}
	buffer := make([]byte, 0, layout.Size())
	buffer = binary.LittleEndian.AppendUint64(buffer, uint64(len(layout.Header)))
	buffer = append(buffer, layout.Header...)
	for _, nv := range layout.Tensors {
		b, err := tensorData(nv)
		if err != nil {
			return nil, err
		}
		buffer = append(buffer, b...)
	}
	return buffer, nil
}

// SerializeToWriter the dictionary of tensors to an io.Writer (such as a file).
//
// Compared to Serialize, this procedure reduces the need to allocate the
// whole amount of memory.
func SerializeToWriter[V View](data map[string]V, metadata map[string]string, w io.Writer) error {
	layout, err := Plan(data, metadata)
	if err != nil {
		return err
	}
	return writeLayout(context.Background(), layout, w)
}

// SerializeToFile writes the dictionary of tensors to the named file,
// with default FileOptions.
func SerializeToFile[V View](filename string, data map[string]V, metadata map[string]string) error {
	return WriteFile(context.Background(), filename, data, metadata, FileOptions{})
}

// WriteFile writes the dictionary of tensors to the named file, creating
// or truncating it.
//
// The file is resized to its final length before any data is written.
// On failure, the file is removed.
func WriteFile[V View](ctx context.Context, filename string, data map[string]V, metadata map[string]string, opts FileOptions) (err error) {
	layout, err := Plan(data, metadata)
	if err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
		if err != nil {
			if rErr := os.Remove(filename); rErr != nil {
				Logger().Warn("failed to remove incomplete file",
					zap.String("file", filename), zap.Error(rErr))
			}
		}
	}()

	if err = f.Truncate(int64(layout.Size())); err != nil {
		return fmt.Errorf("failed to pre-allocate file: %w", err)
	}
	if opts.NoCache {
		if cErr := disableCache(f); cErr != nil {
			Logger().Warn("failed to disable page cache", zap.String("file", filename), zap.Error(cErr))
		}
	}

	Logger().Debug("writing safetensors file",
		zap.String("file", filename),
		zap.Uint64("size", layout.Size()),
		zap.Int("workers", opts.Workers))

	if opts.Workers > 1 {
		err = writeLayoutAt(ctx, layout, f, opts.Workers)
	} else {
		err = writeLayoutBuffered(ctx, layout, f, opts.BufferSize)
	}
	if err != nil {
		return err
	}

	if opts.NoCache {
		if cErr := dropCache(f); cErr != nil {
			Logger().Warn("failed to drop page cache", zap.String("file", filename), zap.Error(cErr))
		}
	}
	return nil
}

func writeLayoutBuffered[V View](ctx context.Context, layout Layout[V], w io.Writer, bufferSize int) error {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	bw := bufio.NewWriterSize(w, bufferSize)
	if err := writeLayout(ctx, layout, bw); err != nil {
		return err
	}
	return bw.Flush()
}

func writeLayout[V View](ctx context.Context, layout Layout[V], w io.Writer) error {
	var nbArr [8]byte
	nb := nbArr[:]
	binary.LittleEndian.PutUint64(nb, uint64(len(layout.Header)))

	if _, err := w.Write(nb); err != nil {
		return err
	}
	if _, err := w.Write(layout.Header); err != nil {
		return err
	}
	for _, nv := range layout.Tensors {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := tensorData(nv)
		if err != nil {
			return err
		}
		if _, err = w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// writeLayoutAt writes the header and each tensor as independent regions,
// at most workers at a time.
func writeLayoutAt[V View](ctx context.Context, layout Layout[V], w io.WriterAt, workers int) error {
	head := make([]byte, 8, 8+len(layout.Header))
	binary.LittleEndian.PutUint64(head, uint64(len(layout.Header)))
	head = append(head, layout.Header...)
	if _, err := w.WriteAt(head, 0); err != nil {
		return err
	}

	base := int64(len(head))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, nv := range layout.Tensors {
		offsets, _ := layout.Metadata.offsets(nv.Name)
		if offsets[1] == offsets[0] {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		offset := base + int64(offsets[0])
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := tensorData(nv)
			if err != nil {
				return err
			}
			if _, err = w.WriteAt(b, offset); err != nil {
				return fmt.Errorf("failed to write tensor %q: %w", nv.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
