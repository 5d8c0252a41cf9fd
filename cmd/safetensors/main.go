// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "github.com/nlpodyssey/safetensors/v2/cmd/safetensors/cmd"

func main() {
	cmd.Execute()
}
