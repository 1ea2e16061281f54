// Package frame builds interpolated frames from context frames: each context
// is replication padded and warped by per-pixel synthesis, then the warped
// frames are blended with per-pixel occlusion weights.
package frame

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/chronosynth/internal/synth"
	"github.com/born-ml/chronosynth/internal/tensor"
	"golang.org/x/sync/errgroup"
)

// ErrNoContexts is returned by Blend when there is nothing to blend.
var ErrNoContexts = errors.New("frame: no context frames")

// Context is one input frame with the kernels that warp it toward the
// interpolated time step.
type Context struct {
	Frame     *tensor.RawTensor // [B, C, H, W], unpadded
	Weight    *tensor.RawTensor // [B, K*K, H, W]
	RowOffset *tensor.RawTensor // [B, K*K, H, W]
	ColOffset *tensor.RawTensor // [B, K*K, H, W]
}

// Synthesizer warps and blends frames with a fixed kernel size and dilation.
type Synthesizer struct {
	backend    tensor.Backend
	kernelSize int
	dilation   int
}

// New returns a Synthesizer running on b.
func New(b tensor.Backend, kernelSize, dilation int) (*Synthesizer, error) {
	if kernelSize < 1 {
		return nil, fmt.Errorf("%w: kernel size %d", synth.ErrKernelSize, kernelSize)
	}
	if dilation < 1 {
		return nil, fmt.Errorf("%w: got %d", synth.ErrDilation, dilation)
	}
	return &Synthesizer{backend: b, kernelSize: kernelSize, dilation: dilation}, nil
}

// Pad returns the replication padding applied to each frame, ((K-1)*D)/2.
func (s *Synthesizer) Pad() int {
	return synth.PadFor(s.kernelSize, s.dilation)
}

// Warp pads c.Frame and synthesizes it with c's kernels. The result has the
// frame's shape.
func (s *Synthesizer) Warp(c Context) (*tensor.RawTensor, error) {
	if err := s.check(c); err != nil {
		return nil, err
	}
	padded := s.backend.PadReplicate(c.Frame, s.Pad())
	return s.backend.Synth(padded, c.Weight, c.RowOffset, c.ColOffset, s.dilation), nil
}

// Blend computes sum_i occlusion[:, i] * Warp(contexts[i]).
//
// occlusion is [B, len(contexts), H, W]. Warps run concurrently; the first
// failure cancels the rest. Splitting occlusion into masks happens on the
// host, so on a recording backend no gradient reaches occlusion itself; use
// BlendMasks to keep the masks on the tape.
func (s *Synthesizer) Blend(ctx context.Context, contexts []Context, occlusion *tensor.RawTensor) (*tensor.RawTensor, error) {
	masks, err := SplitChannels(occlusion)
	if err != nil {
		return nil, err
	}
	if len(masks) != len(contexts) {
		return nil, fmt.Errorf("%w: occlusion has %d channels for %d contexts",
			synth.ErrShapeMismatch, len(masks), len(contexts))
	}
	return s.BlendMasks(ctx, contexts, masks)
}

// BlendMasks is Blend with one [B, 1, H, W] mask per context.
func (s *Synthesizer) BlendMasks(ctx context.Context, contexts []Context, masks []*tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(contexts) == 0 {
		return nil, ErrNoContexts
	}
	if len(masks) != len(contexts) {
		return nil, fmt.Errorf("%w: %d masks for %d contexts", synth.ErrShapeMismatch, len(masks), len(contexts))
	}
	for i, c := range contexts {
		if err := s.check(c); err != nil {
			return nil, fmt.Errorf("context %d: %w", i, err)
		}
		if err := checkMask(masks[i], c.Frame.Shape()); err != nil {
			return nil, fmt.Errorf("context %d: %w", i, err)
		}
	}

	warped := make([]*tensor.RawTensor, len(contexts))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range contexts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w, err := s.Warp(c)
			if err != nil {
				return fmt.Errorf("context %d: %w", i, err)
			}
			warped[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out *tensor.RawTensor
	for i, w := range warped {
		term := s.backend.Mul(masks[i], w)
		if out == nil {
			out = term
			continue
		}
		out = s.backend.Add(out, term)
	}
	return out, nil
}

// check validates c against the synthesizer's kernel size before any
// backend call, so that misuse surfaces as an error rather than a panic.
func (s *Synthesizer) check(c Context) error {
	if c.Frame == nil || c.Weight == nil || c.RowOffset == nil || c.ColOffset == nil {
		return fmt.Errorf("%w: missing tensor", synth.ErrShapeMismatch)
	}
	if len(c.Frame.Shape()) != 4 {
		return fmt.Errorf("%w: frame has shape %v", synth.ErrRank, c.Frame.Shape())
	}

	n, ch, h, w := c.Frame.Shape().NCHW()
	pad := s.Pad()
	padded := tensor.Shape{n, ch, h + 2*pad, w + 2*pad}
	g, err := synth.NewGeometry(padded, c.Weight.Shape(), c.RowOffset.Shape(), c.ColOffset.Shape(), s.dilation)
	if err != nil {
		return err
	}
	if g.KernelSize != s.kernelSize {
		return fmt.Errorf("%w: weight has %d taps, want %d", synth.ErrKernelSize, g.Taps(), s.kernelSize*s.kernelSize)
	}
	if g.Height != h || g.Width != w {
		return fmt.Errorf("%w: kernels are %dx%d, frame is %dx%d", synth.ErrShapeMismatch, g.Height, g.Width, h, w)
	}
	for _, t := range []*tensor.RawTensor{c.Frame, c.Weight, c.RowOffset, c.ColOffset} {
		if t.DType() != tensor.Float32 {
			return fmt.Errorf("%w: got %s", synth.ErrDType, t.DType())
		}
	}
	return nil
}

func checkMask(mask *tensor.RawTensor, frame tensor.Shape) error {
	n, _, h, w := frame.NCHW()
	if want := (tensor.Shape{n, 1, h, w}); mask == nil || !mask.Shape().Equal(want) {
		got := tensor.Shape(nil)
		if mask != nil {
			got = mask.Shape()
		}
		return fmt.Errorf("%w: mask %v, want %v", synth.ErrShapeMismatch, got, want)
	}
	if mask.DType() != tensor.Float32 {
		return fmt.Errorf("%w: mask is %s", synth.ErrDType, mask.DType())
	}
	return nil
}

// SplitChannels copies each channel of a [B, C, H, W] tensor into its own
// [B, 1, H, W] tensor.
func SplitChannels(x *tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(x.Shape()) != 4 {
		return nil, fmt.Errorf("%w: occlusion has shape %v", synth.ErrRank, x.Shape())
	}
	if x.DType() != tensor.Float32 {
		return nil, fmt.Errorf("%w: occlusion is %s", synth.ErrDType, x.DType())
	}

	n, c, h, w := x.Shape().NCHW()
	plane := h * w
	src := x.AsFloat32()
	out := make([]*tensor.RawTensor, c)
	for ch := range c {
		m, err := tensor.NewRaw(tensor.Shape{n, 1, h, w}, tensor.Float32, x.Device())
		if err != nil {
			return nil, err
		}
		dst := m.AsFloat32()
		for b := range n {
			copy(dst[b*plane:(b+1)*plane], src[(b*c+ch)*plane:][:plane])
		}
		out[ch] = m
	}
	return out, nil
}
