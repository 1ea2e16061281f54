package synth

import "math"

// saturation bounds the integer part of an offset. Beyond it float32 has no
// fractional bits, and index arithmetic stays far from overflow.
const saturation = 1 << 30

// Unflatten decomposes a row-major linear index over shape [N, C, H, W]
// into its four coordinates. x varies fastest, n slowest.
func Unflatten(index int, shape [4]int) (n, c, y, x int) {
	x = index % shape[3]
	y = (index / shape[3]) % shape[2]
	c = (index / shape[3] / shape[2]) % shape[1]
	n = (index / shape[3] / shape[2] / shape[1]) % shape[0]
	return n, c, y, x
}

// splitOffset splits v into an integer part truncated toward zero and the
// signed remainder v - trunc(v). NaN splits as zero.
func splitOffset(v float32) (int, float32) {
	switch {
	case v != v:
		return 0, 0
	case v >= saturation:
		return saturation, 0
	case v <= -saturation:
		return -saturation, 0
	}
	i := int(v)
	return i, v - float32(i)
}

// clampIndex restricts i to [0, size-1].
func clampIndex(i, size int) int {
	if i < 0 {
		return 0
	}
	if i > size-1 {
		return size - 1
	}
	return i
}

// bilinear blends four corner values. a weights the move along rows
// (v00 -> v10), b the move along columns (v00 -> v01).
func bilinear(v00, v10, v01, v11, a, b float32) float32 {
	return v00*(1-a)*(1-b) +
		v10*a*(1-b) +
		v01*(1-a)*b +
		v11*a*b
}

// sampleTap reads one channel plane [inH, inW] at tap (i, j) of output pixel
// (y, x) displaced by (alpha, beta). Forward and WeightGrad both go through
// here.
func sampleTap(plane []float32, inH, inW, y, x, i, j, dilation int, alpha, beta float32) float32 {
	ia, fa := splitOffset(alpha)
	ib, fb := splitOffset(beta)

	row := y + i*dilation + ia
	col := x + j*dilation + ib

	top := clampIndex(row, inH)
	bottom := clampIndex(row+1, inH)
	left := clampIndex(col, inW)
	right := clampIndex(col+1, inW)

	return bilinear(
		plane[top*inW+left],
		plane[bottom*inW+left],
		plane[top*inW+right],
		plane[bottom*inW+right],
		fa, fb,
	)
}

// isqrt returns r such that r*r == n, or -1 if n is not a perfect square.
func isqrt(n int) int {
	if n <= 0 {
		return -1
	}
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	if r*r != n {
		return -1
	}
	return r
}
