// Package synth implements the per-pixel synthesis kernels used for video
// frame interpolation.
//
// Synthesis is a spatially varying convolution: every output pixel owns K*K
// kernel weights and K*K two-dimensional sub-pixel offsets. Tap (i, j) of
// output pixel (y, x) samples the input bilinearly at
//
//	(y + i*D + alpha, x + j*D + beta)
//
// where D is the dilation, alpha the row offset and beta the column offset
// predicted for that tap. The output is the weighted sum of the K*K samples.
//
// Two kernels share one sampling routine so that their addressing agrees
// exactly:
//   - Forward computes the output frame.
//   - WeightGrad computes the gradient of the loss with respect to the kernel
//     weights. Gradients with respect to the input frame and the offsets are
//     not computed by this package.
//
// Offsets are split into integer and fractional parts by truncation toward
// zero, so -0.3 becomes (0, -0.3) rather than (-1, 0.7). Both corner
// coordinates are clamped to the input independently; reads are always in
// bounds for any offset value.
//
// Kernels trust their arguments. Slice lengths must match the Geometry; use
// NewGeometry or NewBackwardGeometry to derive and check one from tensor
// shapes before launching.
package synth
