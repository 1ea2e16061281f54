// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/chronosynth/internal/tensor"

// Backend defines the interface that all compute backends implement.
//
// Implementations:
//   - backend/cpu: Pure Go, parallel over goroutines
//   - backend/webgpu: WGSL compute shaders via WebGPU (Windows)
//
// Decorator backends:
//   - autodiff: records Synth, Add and Mul for backpropagation
//
// Backends panic on contract violations. Use package synth for
// validated entry points that return errors.
type Backend interface {
	Add(a, b *RawTensor) *RawTensor // Element-wise addition, equal shapes.
	Mul(a, b *RawTensor) *RawTensor // Element-wise multiplication with broadcasting.

	PadReplicate(x *RawTensor, pad int) *RawTensor // Replication padding of H and W.

	Synth(input, weight, rowOffset, colOffset *RawTensor, dilation int) *RawTensor                // Per-pixel synthesis.
	SynthWeightBackward(gradOutput, input, rowOffset, colOffset *RawTensor, dilation int) *RawTensor // Weight gradient.

	Name() string   // Backend name (e.g., "CPU", "WebGPU").
	Device() Device // Device type.
}

// Compile-time check that internal Backend implements public Backend.
var _ Backend = tensor.Backend(nil)
