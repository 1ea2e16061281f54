package ops

import "github.com/born-ml/chronosynth/internal/tensor"

// SynthOp represents per-pixel synthesis:
//
//	output[n,c,y,x] = sum_t weight[n,t,y,x] * sample(input[n,c], y, x, t, rowOffset, colOffset)
//
// Backward pass computes dL/dweight only. The sample is a bilinear read
// whose coordinates depend on the offsets, so gradients for the input
// frame and the offsets exist mathematically, but they are not
// implemented: those inputs receive nil.
type SynthOp struct {
	inputs   []*tensor.RawTensor // [input, weight, rowOffset, colOffset]
	output   *tensor.RawTensor
	dilation int
}

// NewSynthOp creates a new SynthOp.
func NewSynthOp(input, weight, rowOffset, colOffset, output *tensor.RawTensor, dilation int) *SynthOp {
	return &SynthOp{
		inputs:   []*tensor.RawTensor{input, weight, rowOffset, colOffset},
		output:   output,
		dilation: dilation,
	}
}

// Backward returns [nil, dL/dweight, nil, nil].
func (op *SynthOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input, rowOffset, colOffset := op.inputs[0], op.inputs[2], op.inputs[3]

	gradWeight := backend.SynthWeightBackward(outputGrad, input, rowOffset, colOffset, op.dilation)

	return []*tensor.RawTensor{nil, gradWeight, nil, nil}
}

// Inputs returns [input, weight, rowOffset, colOffset].
func (op *SynthOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the synthesized frame.
func (op *SynthOp) Output() *tensor.RawTensor {
	return op.output
}

// Dilation returns the tap spacing used in the forward pass.
func (op *SynthOp) Dilation() int {
	return op.dilation
}
