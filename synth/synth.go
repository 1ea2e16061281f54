// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package synth

import (
	"context"
	"fmt"

	"github.com/born-ml/chronosynth/internal/frame"
	"github.com/born-ml/chronosynth/internal/synth"
	"github.com/born-ml/chronosynth/tensor"
)

// Geometry describes the tensors of one synthesis call.
type Geometry = synth.Geometry

// Forward synthesizes an output frame. The result is [N, C, H, W] where
// H and W come from the weight tensor.
func Forward(b tensor.Backend, input, weight, rowOffset, colOffset *tensor.RawTensor, dilation int) (*tensor.RawTensor, error) {
	if err := checkOperands(
		operand{"input", input}, operand{"weight", weight},
		operand{"row offset", rowOffset}, operand{"column offset", colOffset},
	); err != nil {
		return nil, err
	}
	if _, err := synth.NewGeometry(input.Shape(), weight.Shape(), rowOffset.Shape(), colOffset.Shape(), dilation); err != nil {
		return nil, err
	}
	return b.Synth(input, weight, rowOffset, colOffset, dilation), nil
}

// BackwardWeight returns the gradient of a Forward output with respect to
// its weights, given the output gradient. The result has the weight's
// shape. Channels are summed.
func BackwardWeight(b tensor.Backend, gradOutput, input, rowOffset, colOffset *tensor.RawTensor, dilation int) (*tensor.RawTensor, error) {
	if err := checkOperands(
		operand{"grad output", gradOutput}, operand{"input", input},
		operand{"row offset", rowOffset}, operand{"column offset", colOffset},
	); err != nil {
		return nil, err
	}
	if _, err := synth.NewBackwardGeometry(gradOutput.Shape(), input.Shape(), rowOffset.Shape(), colOffset.Shape(), dilation); err != nil {
		return nil, err
	}
	return b.SynthWeightBackward(gradOutput, input, rowOffset, colOffset, dilation), nil
}

// NewGeometry validates forward operand shapes without running anything.
func NewGeometry(input, weight, rowOffset, colOffset tensor.Shape, dilation int) (Geometry, error) {
	return synth.NewGeometry(input, weight, rowOffset, colOffset, dilation)
}

// KernelSize returns K for a weight depth of K*K, or ErrKernelSize.
func KernelSize(depth int) (int, error) {
	return synth.KernelSize(depth)
}

// PadFor returns the replication padding ((k-1)*dilation)/2 that keeps the
// output the size of the unpadded frame.
func PadFor(k, dilation int) int {
	return synth.PadFor(k, dilation)
}

// Context is one input frame with the kernels that warp it.
type Context = frame.Context

// Synthesizer pads, warps and blends context frames with a fixed kernel
// size and dilation.
type Synthesizer = frame.Synthesizer

// NewSynthesizer returns a Synthesizer running on b.
func NewSynthesizer(b tensor.Backend, kernelSize, dilation int) (*Synthesizer, error) {
	return frame.New(b, kernelSize, dilation)
}

// Interpolate warps every context and blends the results with occlusion
// [N, len(contexts), H, W].
func Interpolate(ctx context.Context, b tensor.Backend, kernelSize, dilation int, contexts []Context, occlusion *tensor.RawTensor) (*tensor.RawTensor, error) {
	s, err := frame.New(b, kernelSize, dilation)
	if err != nil {
		return nil, err
	}
	return s.Blend(ctx, contexts, occlusion)
}

type operand struct {
	name string
	t    *tensor.RawTensor
}

func checkOperands(ops ...operand) error {
	for _, op := range ops {
		if op.t == nil {
			return fmt.Errorf("%w: %s is nil", ErrShapeMismatch, op.name)
		}
		if op.t.DType() != tensor.Float32 {
			return fmt.Errorf("%w: %s is %s", ErrDType, op.name, op.t.DType())
		}
	}
	return nil
}
