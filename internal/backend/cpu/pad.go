package cpu

import (
	"fmt"

	"github.com/born-ml/chronosynth/internal/parallel"
	"github.com/born-ml/chronosynth/internal/tensor"
)

// PadReplicate pads the two spatial dimensions of an [N, C, H, W] tensor by
// pad on every side, repeating the border pixels.
func (cpu *CPUBackend) PadReplicate(x *tensor.RawTensor, pad int) *tensor.RawTensor {
	requireFloat32("pad", x)
	if len(x.Shape()) != 4 {
		panic(fmt.Sprintf("pad: expected 4D input [N, C, H, W], got %v", x.Shape()))
	}
	if pad < 0 {
		panic(fmt.Sprintf("pad: negative padding %d", pad))
	}
	if pad == 0 {
		return x.Clone()
	}

	n, c, h, w := x.Shape().NCHW()
	outH, outW := h+2*pad, w+2*pad
	result, err := tensor.NewRaw(tensor.Shape{n, c, outH, outW}, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("pad: failed to create result tensor: %v", err))
	}

	src := x.AsFloat32()
	dst := result.AsFloat32()
	parallel.For(n*c, func(p int) {
		in := src[p*h*w : (p+1)*h*w]
		out := dst[p*outH*outW : (p+1)*outH*outW]
		for y := range outH {
			sy := min(max(y-pad, 0), h-1)
			row := in[sy*w : (sy+1)*w]
			for xx := range outW {
				out[y*outW+xx] = row[min(max(xx-pad, 0), w-1)]
			}
		}
	}, cpu.cfg)
	return result
}
