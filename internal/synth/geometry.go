package synth

import (
	"fmt"

	"github.com/born-ml/chronosynth/internal/tensor"
)

// Geometry describes the tensors of one synthesis launch.
type Geometry struct {
	Batch      int
	Channels   int
	InHeight   int
	InWidth    int
	Height     int // output rows, shared by weight and offsets
	Width      int // output columns, shared by weight and offsets
	KernelSize int // K; there are K*K taps
	Dilation   int
}

// Offsets holds the per-tap sub-pixel displacements, both [N, K*K, H, W].
type Offsets struct {
	Row []float32 // alpha, added to the sampled row
	Col []float32 // beta, added to the sampled column
}

// Taps returns K*K.
func (g Geometry) Taps() int {
	return g.KernelSize * g.KernelSize
}

// OutputShape returns [N, C, H, W].
func (g Geometry) OutputShape() [4]int {
	return [4]int{g.Batch, g.Channels, g.Height, g.Width}
}

// WeightShape returns [N, K*K, H, W], the shape of weights, offsets and the
// weight gradient.
func (g Geometry) WeightShape() [4]int {
	return [4]int{g.Batch, g.Taps(), g.Height, g.Width}
}

// InputShape returns [N, C, Hin, Win].
func (g Geometry) InputShape() [4]int {
	return [4]int{g.Batch, g.Channels, g.InHeight, g.InWidth}
}

// Pad returns the replication padding ((K-1)*D)/2 that makes the output the
// same size as an unpadded input frame.
func (g Geometry) Pad() int {
	return PadFor(g.KernelSize, g.Dilation)
}

// PadFor returns ((k-1)*dilation)/2.
func PadFor(k, dilation int) int {
	return ((k - 1) * dilation) / 2
}

// NewGeometry checks the forward operands and derives the launch geometry.
func NewGeometry(input, weight, rowOffset, colOffset tensor.Shape, dilation int) (Geometry, error) {
	if err := checkRank(
		namedShape{"input", input}, namedShape{"weight", weight},
		namedShape{"row offset", rowOffset}, namedShape{"column offset", colOffset},
	); err != nil {
		return Geometry{}, err
	}
	if !weight.Equal(rowOffset) || !weight.Equal(colOffset) {
		return Geometry{}, fmt.Errorf("%w: weight %v, row offset %v, column offset %v",
			ErrShapeMismatch, weight, rowOffset, colOffset)
	}
	return newGeometry(input, weight, dilation)
}

// NewBackwardGeometry checks the weight-gradient operands and derives the
// launch geometry. gradOutput must have the forward output's shape.
func NewBackwardGeometry(gradOutput, input, rowOffset, colOffset tensor.Shape, dilation int) (Geometry, error) {
	if err := checkRank(
		namedShape{"grad output", gradOutput}, namedShape{"input", input},
		namedShape{"row offset", rowOffset}, namedShape{"column offset", colOffset},
	); err != nil {
		return Geometry{}, err
	}
	if !rowOffset.Equal(colOffset) {
		return Geometry{}, fmt.Errorf("%w: row offset %v, column offset %v",
			ErrShapeMismatch, rowOffset, colOffset)
	}

	g, err := newGeometry(input, rowOffset, dilation)
	if err != nil {
		return Geometry{}, err
	}

	want := g.OutputShape()
	if !gradOutput.Equal(want[:]) {
		return Geometry{}, fmt.Errorf("%w: grad output %v, want %v", ErrShapeMismatch, gradOutput, want)
	}
	return g, nil
}

// KernelSize returns K for a tap depth of K*K.
func KernelSize(depth int) (int, error) {
	k := isqrt(depth)
	if k < 1 {
		return 0, fmt.Errorf("%w: depth %d is not a perfect square K*K", ErrKernelSize, depth)
	}
	return k, nil
}

func newGeometry(input, taps tensor.Shape, dilation int) (Geometry, error) {
	if dilation < 1 {
		return Geometry{}, fmt.Errorf("%w: got %d", ErrDilation, dilation)
	}

	n, c, inH, inW := input.NCHW()
	tn, depth, h, w := taps.NCHW()

	if n != tn {
		return Geometry{}, fmt.Errorf("%w: batch %d (input) vs %d (weight)", ErrShapeMismatch, n, tn)
	}
	k, err := KernelSize(depth)
	if err != nil {
		return Geometry{}, err
	}

	return Geometry{
		Batch:      n,
		Channels:   c,
		InHeight:   inH,
		InWidth:    inW,
		Height:     h,
		Width:      w,
		KernelSize: k,
		Dilation:   dilation,
	}, nil
}

type namedShape struct {
	name  string
	shape tensor.Shape
}

func checkRank(shapes ...namedShape) error {
	for _, s := range shapes {
		if len(s.shape) != 4 {
			return fmt.Errorf("%w: %s has shape %v", ErrRank, s.name, s.shape)
		}
		if err := s.shape.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
