//go:build !windows

package webgpu

import (
	"fmt"
	"runtime"

	"github.com/born-ml/chronosynth/internal/tensor"
)

// Backend is the WebGPU backend. The native bindings are only built on
// Windows; elsewhere New always fails.
type Backend struct{}

// New reports ErrUnavailable on this platform.
func New() (*Backend, error) {
	return nil, fmt.Errorf("%w: unsupported platform %s", ErrUnavailable, runtime.GOOS)
}

// IsAvailable reports false on this platform.
func IsAvailable() bool {
	return false
}

// Release is a no-op.
func (b *Backend) Release() {}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "WebGPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

func (b *Backend) Add(_, _ *tensor.RawTensor) *tensor.RawTensor {
	panic(unavailable("add"))
}

func (b *Backend) Mul(_, _ *tensor.RawTensor) *tensor.RawTensor {
	panic(unavailable("mul"))
}

func (b *Backend) PadReplicate(_ *tensor.RawTensor, _ int) *tensor.RawTensor {
	panic(unavailable("pad"))
}

func (b *Backend) Synth(_, _, _, _ *tensor.RawTensor, _ int) *tensor.RawTensor {
	panic(unavailable("synth"))
}

func (b *Backend) SynthWeightBackward(_, _, _, _ *tensor.RawTensor, _ int) *tensor.RawTensor {
	panic(unavailable("synth backward"))
}

func unavailable(op string) string {
	return fmt.Sprintf("%s: %v on %s", op, ErrUnavailable, runtime.GOOS)
}
