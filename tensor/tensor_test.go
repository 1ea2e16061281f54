// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/chronosynth/internal/backend/cpu"
	"github.com/born-ml/chronosynth/tensor"
)

// TestBackendInterface verifies that cpu.CPUBackend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = (*cpu.CPUBackend)(nil)
}

func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	if !raw.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		t.Errorf("DType() = %v, want Float32", raw.DType())
	}
	if raw.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", raw.Device())
	}
	if raw.NumElements() != 6 {
		t.Errorf("NumElements() = %d, want 6", raw.NumElements())
	}
	for i, v := range raw.AsFloat32() {
		if v != 0 {
			t.Fatalf("data[%d] = %v, want 0", i, v)
		}
	}
}

func TestFromFloat32(t *testing.T) {
	data := []float32{1, 2, 3, 4}
	raw, err := tensor.FromFloat32(tensor.Shape{1, 1, 2, 2}, data, tensor.CPU)
	if err != nil {
		t.Fatalf("FromFloat32 failed: %v", err)
	}

	data[0] = 100
	if got := raw.AsFloat32()[0]; got != 1 {
		t.Errorf("FromFloat32 must copy its input, data[0] = %v", got)
	}

	n, c, h, w := raw.Shape().NCHW()
	if n != 1 || c != 1 || h != 2 || w != 2 {
		t.Errorf("NCHW() = %d,%d,%d,%d, want 1,1,2,2", n, c, h, w)
	}

	if _, err := tensor.FromFloat32(tensor.Shape{3}, data, tensor.CPU); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestConstants(t *testing.T) {
	if tensor.Float32.String() != "float32" {
		t.Errorf("Float32.String() = %q", tensor.Float32.String())
	}
	if tensor.WebGPU.String() != "WebGPU" {
		t.Errorf("WebGPU.String() = %q", tensor.WebGPU.String())
	}
}
