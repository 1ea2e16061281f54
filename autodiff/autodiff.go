// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode differentiation of synthesis.
//
// The autodiff backend wraps any backend and records Synth, Add and Mul on a
// gradient tape. Backward yields dL/dweight for every recorded synthesis;
// gradients with respect to frames and offsets are not computed.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	out := backend.Synth(frame, weight, rowOff, colOff, 1)
//	grads := autodiff.BackwardWithGrad(out, gradOut, backend)
//	gradWeight := grads[weight]
package autodiff

import (
	"github.com/born-ml/chronosynth/internal/autodiff"
	"github.com/born-ml/chronosynth/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// BackwardCapable interface for backends that support backpropagation.
type BackwardCapable = autodiff.BackwardCapable

// Backward seeds the output gradient with ones and backpropagates.
func Backward(output *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(output, backend)
}

// BackwardWithGrad backpropagates an explicit output gradient.
func BackwardWithGrad(output, outputGrad *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.BackwardWithGrad(output, outputGrad, backend)
}
