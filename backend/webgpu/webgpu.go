// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated synthesis.
//
// The compute path is built on Windows; on other platforms New returns
// ErrUnavailable and IsAvailable reports false.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    backend = cpu.New()
//	} else {
//	    defer gpu.Release()
//	    backend = gpu
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/chronosynth/internal/backend/webgpu"
	"github.com/born-ml/chronosynth/tensor"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// ErrUnavailable is returned by New when no WebGPU device can be used.
var ErrUnavailable = internalwebgpu.ErrUnavailable

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new WebGPU backend. Call Release() when done to free GPU
// resources.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
