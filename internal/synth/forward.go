package synth

import "github.com/born-ml/chronosynth/internal/parallel"

// Forward computes the synthesized frame.
//
//	input:   [N, C, Hin, Win]
//	weight:  [N, K*K, H, W]
//	off.Row: [N, K*K, H, W]
//	off.Col: [N, K*K, H, W]
//	output:  [N, C, H, W], fully overwritten
//
// For output element (n, c, y, x):
//
//	output = sum over taps (i, j) of
//	         weight[n, i*K+j, y, x] * sample(input[n, c], y + i*D + alpha, x + j*D + beta)
//
// Elements are independent and computed in parallel per cfg.
func Forward(cfg parallel.Config, g Geometry, input, weight []float32, off Offsets, output []float32) {
	shape := g.OutputShape()
	k := g.KernelSize
	planeSize := g.InHeight * g.InWidth
	spatial := g.Height * g.Width
	taps := g.Taps()

	parallel.ForRange(len(output), func(start, end int) {
		for idx := start; idx < end; idx++ {
			n, c, y, x := Unflatten(idx, shape)

			plane := input[(n*g.Channels+c)*planeSize:][:planeSize]
			// Weight and offsets at tap 0 of this pixel; taps are spatial apart.
			base := n*taps*spatial + y*g.Width + x

			var acc float32
			for i := 0; i < k; i++ {
				for j := 0; j < k; j++ {
					t := base + (i*k+j)*spatial
					acc += weight[t] * sampleTap(plane, g.InHeight, g.InWidth, y, x, i, j, g.Dilation, off.Row[t], off.Col[t])
				}
			}
			output[idx] = acc
		}
	}, cfg)
}
