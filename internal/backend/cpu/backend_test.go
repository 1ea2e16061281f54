package cpu

import (
	"testing"

	"github.com/born-ml/chronosynth/internal/parallel"
	"github.com/born-ml/chronosynth/internal/tensor"
)

// Helper to create a tensor from values.
func raw(t *testing.T, shape tensor.Shape, data ...float32) *tensor.RawTensor {
	t.Helper()
	if data == nil {
		data = make([]float32, shape.NumElements())
	}
	r, err := tensor.FromFloat32(shape, data, tensor.CPU)
	if err != nil {
		t.Fatalf("FromFloat32: %v", err)
	}
	return r
}

// Helper to check float32 slices are equal within epsilon.
func float32SliceEqual(a, b []float32) bool {
	const epsilon = 1e-6
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > epsilon {
			return false
		}
	}
	return true
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	if backend == nil {
		t.Fatal("New() returned nil")
	}
	if backend.Name() != "CPU" {
		t.Errorf("Expected name 'CPU', got '%s'", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Expected device CPU, got %v", backend.Device())
	}

	cfg := parallel.Sequential()
	if got := NewWithConfig(cfg).Config(); got != cfg {
		t.Errorf("Expected config %+v, got %+v", cfg, got)
	}
}

func TestCPUBackend_Add(t *testing.T) {
	backend := New()

	t.Run("Shared", func(t *testing.T) {
		a := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
		b := raw(t, tensor.Shape{2, 3}, 10, 11, 12, 13, 14, 15)
		defer a.ForceNonUnique()()

		result := backend.Add(a, b)
		if result == a {
			t.Fatal("Add wrote into a shared tensor")
		}
		expected := []float32{11, 13, 15, 17, 19, 21}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Expected %v, got %v", expected, result.AsFloat32())
		}
		if !float32SliceEqual(a.AsFloat32(), []float32{1, 2, 3, 4, 5, 6}) {
			t.Errorf("Input modified: %v", a.AsFloat32())
		}
	})

	t.Run("Inplace", func(t *testing.T) {
		a := raw(t, tensor.Shape{3}, 1, 2, 3)
		b := raw(t, tensor.Shape{3}, 1, 1, 1)

		result := backend.Add(a, b)
		if result != a {
			t.Error("Expected in-place result for a unique tensor")
		}
		if !float32SliceEqual(result.AsFloat32(), []float32{2, 3, 4}) {
			t.Errorf("Expected [2 3 4], got %v", result.AsFloat32())
		}
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic for mismatched shapes")
			}
		}()
		backend.Add(raw(t, tensor.Shape{2}), raw(t, tensor.Shape{3}))
	})
}

func TestCPUBackend_Mul(t *testing.T) {
	backend := New()

	t.Run("SameShape", func(t *testing.T) {
		a := raw(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
		b := raw(t, tensor.Shape{2, 2}, 2, 2, 0.5, -1)

		result := backend.Mul(a, b)
		expected := []float32{2, 4, 1.5, -4}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Expected %v, got %v", expected, result.AsFloat32())
		}
	})

	t.Run("MaskTimesFrame", func(t *testing.T) {
		mask := raw(t, tensor.Shape{1, 1, 2, 2}, 1, 0, 2, 1)
		frame := raw(t, tensor.Shape{1, 2, 2, 2}, 1, 2, 3, 4, 5, 6, 7, 8)

		result := backend.Mul(mask, frame)
		if !result.Shape().Equal(tensor.Shape{1, 2, 2, 2}) {
			t.Fatalf("Expected shape [1 2 2 2], got %v", result.Shape())
		}
		expected := []float32{1, 0, 6, 4, 5, 0, 14, 8}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Expected %v, got %v", expected, result.AsFloat32())
		}
	})

	t.Run("RankMismatch", func(t *testing.T) {
		a := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
		b := raw(t, tensor.Shape{3}, 10, 100, 1000)

		result := backend.Mul(a, b)
		expected := []float32{10, 200, 3000, 40, 500, 6000}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Expected %v, got %v", expected, result.AsFloat32())
		}
	})

	t.Run("Incompatible", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic for incompatible shapes")
			}
		}()
		backend.Mul(raw(t, tensor.Shape{2, 3}), raw(t, tensor.Shape{2, 2}))
	})
}

func TestCPUBackend_Float64Rejected(t *testing.T) {
	backend := New()
	a, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float64, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for float64 input")
		}
	}()
	backend.Add(a, a)
}
