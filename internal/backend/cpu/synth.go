package cpu

import (
	"fmt"

	"github.com/born-ml/chronosynth/internal/synth"
	"github.com/born-ml/chronosynth/internal/tensor"
)

// Synth runs forward pixel synthesis.
//
// input is [N, C, Hin, Win]; weight, rowOffset and colOffset are
// [N, K*K, H, W]. The result is a new [N, C, H, W] tensor.
func (cpu *CPUBackend) Synth(input, weight, rowOffset, colOffset *tensor.RawTensor, dilation int) *tensor.RawTensor {
	requireFloat32("synth", input, weight, rowOffset, colOffset)
	g, err := synth.NewGeometry(input.Shape(), weight.Shape(), rowOffset.Shape(), colOffset.Shape(), dilation)
	if err != nil {
		panic(fmt.Sprintf("synth: %v", err))
	}

	out := g.OutputShape()
	result, err := tensor.NewRaw(tensor.Shape(out[:]), tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("synth: failed to create result tensor: %v", err))
	}

	synth.Forward(cpu.cfg, g, input.AsFloat32(), weight.AsFloat32(), offsetsOf(rowOffset, colOffset), result.AsFloat32())
	return result
}

// SynthWeightBackward computes the gradient of a Synth output with respect
// to its kernel weights. gradOutput has the forward output's shape; the
// result has the weight's shape.
func (cpu *CPUBackend) SynthWeightBackward(gradOutput, input, rowOffset, colOffset *tensor.RawTensor, dilation int) *tensor.RawTensor {
	requireFloat32("synth backward", gradOutput, input, rowOffset, colOffset)
	g, err := synth.NewBackwardGeometry(gradOutput.Shape(), input.Shape(), rowOffset.Shape(), colOffset.Shape(), dilation)
	if err != nil {
		panic(fmt.Sprintf("synth backward: %v", err))
	}

	ws := g.WeightShape()
	result, err := tensor.NewRaw(tensor.Shape(ws[:]), tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("synth backward: failed to create result tensor: %v", err))
	}

	synth.WeightGrad(cpu.cfg, g, gradOutput.AsFloat32(), input.AsFloat32(), offsetsOf(rowOffset, colOffset), result.AsFloat32())
	return result
}

func offsetsOf(rowOffset, colOffset *tensor.RawTensor) synth.Offsets {
	return synth.Offsets{Row: rowOffset.AsFloat32(), Col: colOffset.AsFloat32()}
}
