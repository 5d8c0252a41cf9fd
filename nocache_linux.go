// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package safetensors

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// disableCache tells the kernel the file is written once, sequentially.
func disableCache(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

// dropCache flushes the written data and evicts it from the page cache.
func dropCache(f *os.File) error {
	fd := int(f.Fd())
	if err := unix.Fdatasync(fd); err != nil {
		return fmt.Errorf("fdatasync: %w", err)
	}
	return unix.Fadvise(fd, 0, 0, unix.FADV_DONTNEED)
}
