// Package cpu implements the pure Go CPU backend.
package cpu

import (
	"fmt"

	"github.com/born-ml/chronosynth/internal/parallel"
	"github.com/born-ml/chronosynth/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
// Kernel launches run through parallel.ForRange using the backend's Config.
type CPUBackend struct {
	device tensor.Device
	cfg    parallel.Config
}

// New creates a new CPU backend with parallel.DefaultConfig.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend that launches kernels with cfg.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		cfg:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Config returns the execution config used for kernel launches.
func (cpu *CPUBackend) Config() parallel.Config {
	return cpu.cfg
}

// Add performs element-wise addition of two tensors with the same shape.
// Writes into a when a holds the only reference to its buffer.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("add", a, b)
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}

	if a.IsUnique() {
		addInplaceFloat32(a.AsFloat32(), b.AsFloat32())
		return a
	}

	result, err := tensor.NewRaw(a.Shape(), tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("add: failed to create result tensor: %v", err))
	}
	addVectorizedFloat32(result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
	return result
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
// The usual case is an occlusion mask [N, 1, H, W] times a frame [N, C, H, W].
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("mul", a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("mul: %v", err))
	}

	result, err := tensor.NewRaw(outShape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("mul: failed to create result tensor: %v", err))
	}

	if needsBroadcast {
		mulBroadcastFloat32(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
	} else {
		mulVectorizedFloat32(result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
	}
	return result
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: only float32 is supported, got %s", op, t.DType()))
		}
	}
}
