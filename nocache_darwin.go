// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin

package safetensors

import (
	"os"

	"golang.org/x/sys/unix"
)

// disableCache turns on F_NOCACHE, so that writes bypass the unified
// buffer cache.
func disableCache(f *os.File) error {
	_, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1)
	return err
}

func dropCache(*os.File) error { return nil }
