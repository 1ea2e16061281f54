package ops

import (
	"fmt"

	"github.com/born-ml/chronosynth/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[2,1,4,4] * b[2,3,4,4] -> c[2,3,4,4]  (a was broadcast along dim 1)
//	Backward: grad_c[2,3,4,4] -> grad_a[2,1,4,4] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape) *tensor.RawTensor {
	gradShape := grad.Shape()

	// If shapes already match, clone to avoid aliasing issues
	// (prevents inplace operations from modifying shared gradients)
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}
	if len(targetShape) > len(gradShape) {
		panic(fmt.Sprintf("reduceBroadcast: target %v has more dims than gradient %v", targetShape, gradShape))
	}

	result, err := tensor.NewRaw(targetShape, grad.DType(), grad.Device())
	if err != nil {
		panic(fmt.Sprintf("reduceBroadcast: failed to create result: %v", err))
	}

	sumFloat32Broadcast(grad.AsFloat32(), result.AsFloat32(), gradShape, targetShape)
	return result
}

// sumFloat32Broadcast accumulates every element of data into the element of
// result it was broadcast from. Shapes align from the right; leading dims
// missing from resultShape and dims of size 1 are summed away.
func sumFloat32Broadcast(data, result []float32, shape, resultShape tensor.Shape) {
	if out, _, err := tensor.BroadcastShapes(resultShape, shape); err != nil || !out.Equal(shape) {
		panic(fmt.Sprintf("reduceBroadcast: %v is not broadcastable to %v", resultShape, shape))
	}

	strides := shape.ComputeStrides()
	resultStrides := tensor.BroadcastStrides(resultShape, shape)

	for i, v := range data {
		idx, rem := 0, i
		for d := range strides {
			idx += rem / strides[d] * resultStrides[d]
			rem %= strides[d]
		}
		result[idx] += v
	}
}
