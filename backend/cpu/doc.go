// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for frame synthesis.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Synthesis kernels split into contiguous chunks across goroutines
//   - NumPy-compatible broadcasting for Mul
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/chronosynth/backend/cpu"
//	    "github.com/born-ml/chronosynth/synth"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    out, err := synth.Forward(backend, frame, weight, rowOff, colOff, 1)
//	}
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each operation allocates its
// own result and does not share mutable state.
package cpu
