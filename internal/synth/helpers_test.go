package synth

import (
	"math"
	"math/rand"

	"github.com/born-ml/chronosynth/internal/parallel"
)

// problem is a complete set of synthesis operands.
type problem struct {
	g      Geometry
	input  []float32
	weight []float32
	off    Offsets
}

func newProblem(g Geometry) *problem {
	wn := g.Batch * g.Taps() * g.Height * g.Width
	return &problem{
		g:      g,
		input:  make([]float32, g.Batch*g.Channels*g.InHeight*g.InWidth),
		weight: make([]float32, wn),
		off:    Offsets{Row: make([]float32, wn), Col: make([]float32, wn)},
	}
}

// randomProblem fills every operand from a seeded source. Offsets span a few
// pixels in both directions so truncation of negative values is exercised.
func randomProblem(g Geometry, seed int64) *problem {
	p := newProblem(g)
	rng := rand.New(rand.NewSource(seed))
	fill(rng, p.input, 0, 1)
	fill(rng, p.weight, -1, 1)
	fill(rng, p.off.Row, -2.5, 2.5)
	fill(rng, p.off.Col, -2.5, 2.5)
	return p
}

func fill(rng *rand.Rand, dst []float32, lo, hi float32) {
	for i := range dst {
		dst[i] = lo + (hi-lo)*rng.Float32()
	}
}

func (p *problem) forward(cfg parallel.Config) []float32 {
	out := make([]float32, p.g.Batch*p.g.Channels*p.g.Height*p.g.Width)
	Forward(cfg, p.g, p.input, p.weight, p.off, out)
	return out
}

func (p *problem) weightGrad(cfg parallel.Config, gradOutput []float32) []float32 {
	out := make([]float32, len(p.weight))
	WeightGrad(cfg, p.g, gradOutput, p.input, p.off, out)
	return out
}

// referenceForward is a direct transcription of the synthesis formula with
// explicit nested loops, float64 interpolation weights and math.Trunc.
func referenceForward(p *problem) []float32 {
	g := p.g
	k := g.KernelSize
	out := make([]float32, g.Batch*g.Channels*g.Height*g.Width)
	clamp := func(v, size int) int { return min(max(v, 0), size-1) }

	for n := 0; n < g.Batch; n++ {
		for c := 0; c < g.Channels; c++ {
			for y := 0; y < g.Height; y++ {
				for x := 0; x < g.Width; x++ {
					var acc float64
					for i := 0; i < k; i++ {
						for j := 0; j < k; j++ {
							t := ((n*g.Taps()+i*k+j)*g.Height+y)*g.Width + x
							alpha := float64(p.off.Row[t])
							beta := float64(p.off.Col[t])
							ia, ib := math.Trunc(alpha), math.Trunc(beta)
							fa, fb := alpha-ia, beta-ib

							r0 := clamp(y+i*g.Dilation+int(ia), g.InHeight)
							r1 := clamp(y+i*g.Dilation+int(ia)+1, g.InHeight)
							c0 := clamp(x+j*g.Dilation+int(ib), g.InWidth)
							c1 := clamp(x+j*g.Dilation+int(ib)+1, g.InWidth)

							at := func(r, col int) float64 {
								return float64(p.input[((n*g.Channels+c)*g.InHeight+r)*g.InWidth+col])
							}
							v := at(r0, c0)*(1-fa)*(1-fb) + at(r1, c0)*fa*(1-fb) +
								at(r0, c1)*(1-fa)*fb + at(r1, c1)*fa*fb
							acc += float64(p.weight[t]) * v
						}
					}
					out[((n*g.Channels+c)*g.Height+y)*g.Width+x] = float32(acc)
				}
			}
		}
	}
	return out
}

// dot returns sum(a*b) accumulated in float64.
func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
