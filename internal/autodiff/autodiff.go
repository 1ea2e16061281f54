// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation (CPU, WebGPU) and adds
// gradient tracking capabilities through a GradientTape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: Each op (Add, Mul, Synth) implements backward pass
//   - Reverse-mode AD: Computes gradients efficiently using chain rule
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	out := backend.Synth(frame, weight, rowOffset, colOffset, 1)
//	grads := autodiff.Backward(out, backend)
//	gradWeight := grads[weight] // dL/dweight for L = sum(out)
package autodiff

import (
	"github.com/born-ml/chronosynth/internal/autodiff/ops"
	"github.com/born-ml/chronosynth/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend (CPU, WebGPU)
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
// Useful for:
//   - Starting/stopping recording
//   - Clearing tape between iterations
//   - Inspecting recorded operations
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	// Inputs are still referenced by the tape; keep the inner backend from
	// writing the sum into a.
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()

	result := b.inner.Add(a, c)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(a, c, result))
	}

	return result
}

// Mul performs broadcasting multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()

	result := b.inner.Mul(a, c)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(a, c, result))
	}

	return result
}

// PadReplicate pads a frame without recording: no gradient flows back into
// synthesis inputs, so the padding never needs a backward pass.
func (b *AutodiffBackend[B]) PadReplicate(x *tensor.RawTensor, pad int) *tensor.RawTensor {
	return b.inner.PadReplicate(x, pad)
}

// Synth runs per-pixel synthesis and records the operation.
//
// Only the weight receives a gradient in the backward pass.
func (b *AutodiffBackend[B]) Synth(input, weight, rowOffset, colOffset *tensor.RawTensor, dilation int) *tensor.RawTensor {
	result := b.inner.Synth(input, weight, rowOffset, colOffset, dilation)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSynthOp(input, weight, rowOffset, colOffset, result, dilation))
	}

	return result
}

// SynthWeightBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) SynthWeightBackward(gradOutput, input, rowOffset, colOffset *tensor.RawTensor, dilation int) *tensor.RawTensor {
	return b.inner.SynthWeightBackward(gradOutput, input, rowOffset, colOffset, dilation)
}
