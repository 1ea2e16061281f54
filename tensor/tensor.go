// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types used by chronosynth.
//
// Tensors are dense, contiguous, row-major buffers. Synthesis operands are
// 4D [N, C, H, W] float32 tensors.
//
// Example:
//
//	frame, _ := tensor.FromFloat32(tensor.Shape{1, 3, 4, 4}, pixels, tensor.CPU)
//	n, c, h, w := frame.Shape().NCHW()
package tensor

import (
	"github.com/born-ml/chronosynth/internal/tensor"
)

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{1, 3, 64, 64} is one 3-channel 64×64 frame.
type Shape = tensor.Shape

// RawTensor is the reference-counted tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Typed data access via AsFloat32() and AsFloat64()
//   - Copy-on-Write sharing via Clone()
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()
//	clone := raw.Clone() // shares the buffer
type RawTensor = tensor.RawTensor

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromFloat32 creates a float32 tensor holding a copy of data.
func FromFloat32(shape Shape, data []float32, device Device) (*RawTensor, error) {
	return tensor.FromFloat32(shape, data, device)
}
