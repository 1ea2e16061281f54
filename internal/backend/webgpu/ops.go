//go:build windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/chronosynth/internal/synth"
	"github.com/born-ml/chronosynth/internal/tensor"
)

// Add performs element-wise addition on GPU.
func (b *Backend) Add(a, other *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("add", a, other)
	if !a.Shape().Equal(other.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), other.Shape()))
	}

	return b.launch("add", a.Shape(), kernel{
		name:    "add",
		code:    addShader,
		inputs:  [][]byte{a.Data(), other.Data()},
		params:  packParams(a.NumElements()),
		threads: a.NumElements(),
	})
}

// Mul performs element-wise multiplication with broadcasting on GPU.
// Operands of rank up to 4 are supported.
func (b *Backend) Mul(a, other *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("mul", a, other)
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), other.Shape())
	if err != nil {
		panic(fmt.Sprintf("mul: %v", err))
	}
	if len(outShape) > 4 {
		panic(fmt.Sprintf("mul: rank %d exceeds 4", len(outShape)))
	}

	out4 := pad4(outShape)
	aStrides := tensor.BroadcastStrides(a.Shape(), out4)
	bStrides := tensor.BroadcastStrides(other.Shape(), out4)

	fields := make([]int, 0, 16)
	fields = append(fields, out4...)
	fields = append(fields, aStrides...)
	fields = append(fields, bStrides...)
	fields = append(fields, outShape.NumElements(), 0, 0, 0)

	return b.launch("mul", outShape, kernel{
		name:    "mul_broadcast",
		code:    mulBroadcastShader,
		inputs:  [][]byte{a.Data(), other.Data()},
		params:  packParams(fields...),
		threads: outShape.NumElements(),
	})
}

// PadReplicate pads the spatial dims of [N, C, H, W] by pad, repeating the
// border pixels.
func (b *Backend) PadReplicate(x *tensor.RawTensor, pad int) *tensor.RawTensor {
	requireFloat32("pad", x)
	if len(x.Shape()) != 4 {
		panic(fmt.Sprintf("pad: expected 4D input [N, C, H, W], got %v", x.Shape()))
	}
	if pad < 0 {
		panic(fmt.Sprintf("pad: negative padding %d", pad))
	}

	n, c, h, w := x.Shape().NCHW()
	outShape := tensor.Shape{n, c, h + 2*pad, w + 2*pad}
	return b.launch("pad", outShape, kernel{
		name:    "pad_replicate",
		code:    padReplicateShader,
		inputs:  [][]byte{x.Data()},
		params:  packParams(n*c, h, w, pad),
		threads: outShape.NumElements(),
	})
}

// Synth runs forward pixel synthesis on GPU. See tensor.Backend.
func (b *Backend) Synth(input, weight, rowOffset, colOffset *tensor.RawTensor, dilation int) *tensor.RawTensor {
	requireFloat32("synth", input, weight, rowOffset, colOffset)
	g, err := synth.NewGeometry(input.Shape(), weight.Shape(), rowOffset.Shape(), colOffset.Shape(), dilation)
	if err != nil {
		panic(fmt.Sprintf("synth: %v", err))
	}

	out := g.OutputShape()
	outShape := tensor.Shape(out[:])
	return b.launch("synth", outShape, kernel{
		name:    "synth_forward",
		code:    synthForwardShader,
		inputs:  [][]byte{weight.Data(), input.Data(), rowOffset.Data(), colOffset.Data()},
		params:  geometryParams(g),
		threads: outShape.NumElements(),
	})
}

// SynthWeightBackward computes dL/dweight on GPU. See tensor.Backend.
func (b *Backend) SynthWeightBackward(gradOutput, input, rowOffset, colOffset *tensor.RawTensor, dilation int) *tensor.RawTensor {
	requireFloat32("synth backward", gradOutput, input, rowOffset, colOffset)
	g, err := synth.NewBackwardGeometry(gradOutput.Shape(), input.Shape(), rowOffset.Shape(), colOffset.Shape(), dilation)
	if err != nil {
		panic(fmt.Sprintf("synth backward: %v", err))
	}

	ws := g.WeightShape()
	outShape := tensor.Shape(ws[:])
	return b.launch("synth backward", outShape, kernel{
		name:    "synth_weight_grad",
		code:    synthWeightGradShader,
		inputs:  [][]byte{gradOutput.Data(), input.Data(), rowOffset.Data(), colOffset.Data()},
		params:  geometryParams(g),
		threads: outShape.NumElements(),
	})
}

// launch runs k into a new float32 tensor of the given shape, panicking
// with op as prefix on failure.
func (b *Backend) launch(op string, shape tensor.Shape, k kernel) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, tensor.Float32, tensor.WebGPU)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	//nolint:gosec // G115: ByteSize() is non-negative
	k.resultSize = uint64(result.ByteSize())

	data, err := b.run(k)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	copy(result.Data(), data)
	return result
}

func geometryParams(g synth.Geometry) []byte {
	return packParams(g.Batch, g.Channels, g.InHeight, g.InWidth, g.Height, g.Width, g.KernelSize, g.Dilation)
}

// pad4 left-pads a shape of rank <= 4 with ones.
func pad4(s tensor.Shape) tensor.Shape {
	out := tensor.Shape{1, 1, 1, 1}
	copy(out[4-len(s):], s)
	return out
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: only float32 is supported, got %s", op, t.DType()))
		}
	}
}
