package tensor

// Backend defines the operations a compute backend provides.
//
// Implementations:
//   - CPU: pure Go, parallel over goroutines (internal/backend/cpu)
//   - WebGPU: WGSL compute shaders (internal/backend/webgpu)
//
// Backends panic on shape or dtype contract violations. Callers that need
// errors validate first (see package synth).
type Backend interface {
	// Element-wise operations
	Add(a, b *RawTensor) *RawTensor // same shape
	Mul(a, b *RawTensor) *RawTensor // NumPy-style broadcasting

	// PadReplicate pads the two spatial dims of [N, C, H, W] by pad on every
	// side, repeating the border pixels.
	PadReplicate(x *RawTensor, pad int) *RawTensor

	// Synth runs per-pixel synthesis.
	//   input:     [N, C, Hin, Win]
	//   weight:    [N, K*K, H, W]
	//   rowOffset: [N, K*K, H, W] (vertical sub-pixel offset per tap)
	//   colOffset: [N, K*K, H, W] (horizontal sub-pixel offset per tap)
	// Returns [N, C, H, W].
	Synth(input, weight, rowOffset, colOffset *RawTensor, dilation int) *RawTensor

	// SynthWeightBackward returns dL/dweight [N, K*K, H, W] given
	// dL/doutput [N, C, H, W] and the forward inputs.
	SynthWeightBackward(gradOutput, input, rowOffset, colOffset *RawTensor, dilation int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
