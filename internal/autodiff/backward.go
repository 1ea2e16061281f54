package autodiff

import (
	"fmt"

	"github.com/born-ml/chronosynth/internal/tensor"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of sum(output) with respect to every tensor
// recorded on the backend's tape. output must be the last recorded result.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	out := backend.Synth(frame, weight, rowOffset, colOffset, 1)
//	gradients := autodiff.Backward(out, backend)
//	grad := gradients[weight]
func Backward(output *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	outputGrad, err := tensor.NewRaw(output.Shape(), output.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: failed to create output gradient: %v", err))
	}
	if output.DType() != tensor.Float32 {
		panic(fmt.Sprintf("backward: unsupported dtype %s (only float32 supported)", output.DType()))
	}
	for i := range outputGrad.AsFloat32() {
		outputGrad.AsFloat32()[i] = 1
	}
	return BackwardWithGrad(output, outputGrad, backend)
}

// BackwardWithGrad computes gradients given an explicit dL/doutput.
func BackwardWithGrad(output, outputGrad *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()

	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	if last := tape.operations[tape.NumOps()-1].Output(); last != output {
		panic("backward: output is not the result of the last recorded operation")
	}
	if !outputGrad.Shape().Equal(output.Shape()) {
		panic(fmt.Sprintf("backward: gradient shape %v does not match output %v", outputGrad.Shape(), output.Shape()))
	}

	return tape.Backward(outputGrad, backend)
}
