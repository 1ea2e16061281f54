// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package synth

import "github.com/born-ml/chronosynth/internal/synth"

// Validation errors. Use errors.Is to match them.
var (
	ErrRank          = synth.ErrRank
	ErrShapeMismatch = synth.ErrShapeMismatch
	ErrKernelSize    = synth.ErrKernelSize
	ErrDilation      = synth.ErrDilation
	ErrDType         = synth.ErrDType
)
