package synth

import "github.com/born-ml/chronosynth/internal/parallel"

// WeightGrad computes dL/dweight for Forward.
//
//	gradOutput: [N, C, H, W]
//	input:      [N, C, Hin, Win]
//	off.Row:    [N, K*K, H, W]
//	off.Col:    [N, K*K, H, W]
//	gradWeight: [N, K*K, H, W], fully overwritten
//
// Forward is linear in each weight scalar, so for tap t = i*K+j of pixel (y, x)
//
//	gradWeight[n, t, y, x] = sum over c of gradOutput[n, c, y, x] * sample(input[n, c], tap t)
//
// using exactly the sample Forward used. The sum runs over all C channels of
// gradOutput.
//
// Gradients with respect to input and offsets are not produced here.
func WeightGrad(cfg parallel.Config, g Geometry, gradOutput, input []float32, off Offsets, gradWeight []float32) {
	shape := g.WeightShape()
	k := g.KernelSize
	planeSize := g.InHeight * g.InWidth
	spatial := g.Height * g.Width

	parallel.ForRange(len(gradWeight), func(start, end int) {
		for idx := start; idx < end; idx++ {
			n, t, y, x := Unflatten(idx, shape)
			i, j := t/k, t%k
			alpha, beta := off.Row[idx], off.Col[idx]

			var acc float32
			for c := 0; c < g.Channels; c++ {
				delta := gradOutput[(n*g.Channels+c)*spatial+y*g.Width+x]
				plane := input[(n*g.Channels+c)*planeSize:][:planeSize]
				acc += delta * sampleTap(plane, g.InHeight, g.InWidth, y, x, i, j, g.Dilation, alpha, beta)
			}
			gradWeight[idx] = acc
		}
	}, cfg)
}
