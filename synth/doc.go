// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package synth is the host entry point for per-pixel frame synthesis.
//
// Synthesis resamples an input frame with a spatially varying K×K kernel.
// Every output pixel (y, x) combines K*K taps; tap (i, j) reads the input
// bilinearly at (y + i*D + alpha, x + j*D + beta), where D is the dilation
// and alpha, beta are the tap's learned row and column offsets. Reads past
// the border are clamped, never zero padded.
//
// Tensors:
//
//	input      [N, C, Hin, Win]
//	weight     [N, K*K, H, W]
//	rowOffset  [N, K*K, H, W]
//	colOffset  [N, K*K, H, W]
//	output     [N, C, H, W]
//
// Forward and BackwardWeight validate their operands and return errors
// (ErrRank, ErrShapeMismatch, ErrDType, ErrKernelSize, ErrDilation) before
// handing off to the backend, whose ops panic on the same violations.
//
// Example:
//
//	backend := cpu.New()
//	out, err := synth.Forward(backend, frame, weight, rowOff, colOff, 1)
//	if err != nil {
//	    return err
//	}
//	gradWeight, err := synth.BackwardWeight(backend, gradOut, frame, rowOff, colOff, 1)
//
// To produce a frame-sized output from an unpadded frame, pad it first with
// Backend.PadReplicate(frame, synth.PadFor(K, D)), or use a Synthesizer.
package synth
