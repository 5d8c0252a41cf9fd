// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux && !darwin

package safetensors

import (
	"errors"
	"os"
)

var errNoCacheUnsupported = errors.New("page cache control is not supported on this platform")

func disableCache(*os.File) error { return errNoCacheUnsupported }

func dropCache(*os.File) error { return nil }
