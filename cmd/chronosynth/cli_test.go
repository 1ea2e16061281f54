package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/born-ml/chronosynth/internal/envconfig"
	"github.com/born-ml/chronosynth/internal/serialization"
	"github.com/born-ml/chronosynth/synth"
	"github.com/born-ml/chronosynth/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CHRONOSYNTH_BACKEND", "")
	t.Setenv("CHRONOSYNTH_DEBUG", "")

	var stdout, stderr bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func filled(t *testing.T, shape tensor.Shape, v float32) *tensor.RawTensor {
	t.Helper()
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = v
	}
	r, err := tensor.FromFloat32(shape, data, tensor.CPU)
	require.NoError(t, err)
	return r
}

func writeFile(t *testing.T, tensors map[string]*tensor.RawTensor) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.safetensors")
	require.NoError(t, serialization.Write(path, tensors, nil, serialization.WriteOptions{}))
	return path
}

func readTensor(t *testing.T, path, name string) (*tensor.RawTensor, map[string]string) {
	t.Helper()
	r, err := serialization.Open(path)
	require.NoError(t, err)
	defer r.Close()

	raw, err := r.Load(name)
	require.NoError(t, err)
	return raw, r.Metadata()
}

// halfPixel is a 2x2 frame sampled once at its centre.
func halfPixel(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	input, err := tensor.FromFloat32(tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4}, tensor.CPU)
	require.NoError(t, err)
	return map[string]*tensor.RawTensor{
		nameInput:     input,
		nameWeight:    filled(t, tensor.Shape{1, 1, 1, 1}, 1),
		nameRowOffset: filled(t, tensor.Shape{1, 1, 1, 1}, 0.5),
		nameColOffset: filled(t, tensor.Shape{1, 1, 1, 1}, 0.5),
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "chronosynth version "+version+"\n", out)

	out, err = run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestEnv(t *testing.T) {
	out, err := run(t, "env")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^NAME\s+VALUE\s+DESCRIPTION`, out)
	assert.Regexp(t, `(?m)^CHRONOSYNTH_BACKEND\s+cpu\s+Compute backend`, out)
	assert.Regexp(t, `(?m)^CHRONOSYNTH_DEBUG\s+false\s`, out)
	assert.Contains(t, out, "CHRONOSYNTH_NUM_THREADS")
}

func TestForward(t *testing.T) {
	in := writeFile(t, halfPixel(t))
	outPath := filepath.Join(t.TempDir(), "out.safetensors")

	out, err := run(t, "forward", "--in", in, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote output [1 1 1 1]")

	output, meta := readTensor(t, outPath, nameOutput)
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, output.Shape())
	assert.InDelta(t, 2.5, output.AsFloat32()[0], 1e-6)
	assert.Equal(t, "1", meta["dilation"])
	assert.Equal(t, "CPU", meta["backend"])
}

func TestForward_Half(t *testing.T) {
	in := writeFile(t, halfPixel(t))
	outPath := filepath.Join(t.TempDir(), "out.safetensors")

	_, err := run(t, "forward", "--in", in, "--out", outPath, "--dtype", "f16")
	require.NoError(t, err)

	r, err := serialization.Open(outPath)
	require.NoError(t, err)
	defer r.Close()
	info, err := r.Info(nameOutput)
	require.NoError(t, err)
	assert.Equal(t, serialization.F16, info.DType)

	output, err := r.Load(nameOutput)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), output.AsFloat32()[0])
}

func TestForward_DType(t *testing.T) {
	in := writeFile(t, halfPixel(t))
	outPath := filepath.Join(t.TempDir(), "out.safetensors")

	_, err := run(t, "forward", "--in", in, "--out", outPath, "--dtype", "BF16")
	require.NoError(t, err)
	output, _ := readTensor(t, outPath, nameOutput)
	assert.Equal(t, float32(2.5), output.AsFloat32()[0])

	_, err = run(t, "forward", "--in", in, "--out", outPath, "--dtype", "f64")
	assert.ErrorContains(t, err, "unsupported --dtype")
}

func TestForward_PadKeepsFrameSize(t *testing.T) {
	frame, err := tensor.FromFloat32(tensor.Shape{1, 1, 3, 3}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.CPU)
	require.NoError(t, err)

	weight := filled(t, tensor.Shape{1, 9, 3, 3}, 0)
	for p := range 9 {
		weight.AsFloat32()[4*9+p] = 1 // centre tap
	}
	zero := filled(t, tensor.Shape{1, 9, 3, 3}, 0)

	in := writeFile(t, map[string]*tensor.RawTensor{
		nameInput: frame, nameWeight: weight, nameRowOffset: zero, nameColOffset: zero,
	})
	outPath := filepath.Join(t.TempDir(), "out.safetensors")

	_, err = run(t, "forward", "--in", in, "--out", outPath, "--pad")
	require.NoError(t, err)

	output, _ := readTensor(t, outPath, nameOutput)
	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, output.Shape())
	assert.InDeltaSlice(t, frame.AsFloat32(), output.AsFloat32(), 1e-6)
}

func TestForward_Errors(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.safetensors")

	t.Run("missing flags", func(t *testing.T) {
		_, err := run(t, "forward")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, "forward", "--in", filepath.Join(t.TempDir(), "nope"), "--out", outPath)
		assert.Error(t, err)
	})

	t.Run("missing tensor", func(t *testing.T) {
		ts := halfPixel(t)
		delete(ts, nameColOffset)
		_, err := run(t, "forward", "--in", writeFile(t, ts), "--out", outPath)
		assert.ErrorIs(t, err, serialization.ErrTensorNotFound)
	})

	t.Run("kernel size", func(t *testing.T) {
		ts := halfPixel(t)
		for _, name := range []string{nameWeight, nameRowOffset, nameColOffset} {
			ts[name] = filled(t, tensor.Shape{1, 3, 1, 1}, 0)
		}
		_, err := run(t, "forward", "--in", writeFile(t, ts), "--out", outPath)
		assert.ErrorIs(t, err, synth.ErrKernelSize)

		_, err = run(t, "forward", "--in", writeFile(t, ts), "--out", outPath, "--pad")
		assert.ErrorIs(t, err, synth.ErrKernelSize)
	})

	t.Run("dilation", func(t *testing.T) {
		_, err := run(t, "forward", "--in", writeFile(t, halfPixel(t)), "--out", outPath, "--dilation", "0")
		assert.ErrorIs(t, err, synth.ErrDilation)
	})
}

func TestBackward(t *testing.T) {
	input, err := tensor.FromFloat32(tensor.Shape{1, 2, 2, 2}, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.CPU)
	require.NoError(t, err)
	in := writeFile(t, map[string]*tensor.RawTensor{
		nameGradOutput: filled(t, tensor.Shape{1, 2, 1, 1}, 1),
		nameInput:      input,
		nameRowOffset:  filled(t, tensor.Shape{1, 1, 1, 1}, 0.5),
		nameColOffset:  filled(t, tensor.Shape{1, 1, 1, 1}, 0.5),
	})
	outPath := filepath.Join(t.TempDir(), "grad.safetensors")

	out, err := run(t, "backward", "--in", in, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote grad_weight [1 1 1 1]")

	grad, _ := readTensor(t, outPath, nameGradWeight)
	assert.InDelta(t, 9, grad.AsFloat32()[0], 1e-5)
}

func TestBackward_GradOutputShape(t *testing.T) {
	in := writeFile(t, map[string]*tensor.RawTensor{
		nameGradOutput: filled(t, tensor.Shape{1, 3, 1, 1}, 1),
		nameInput:      filled(t, tensor.Shape{1, 2, 2, 2}, 1),
		nameRowOffset:  filled(t, tensor.Shape{1, 1, 1, 1}, 0),
		nameColOffset:  filled(t, tensor.Shape{1, 1, 1, 1}, 0),
	})
	_, err := run(t, "backward", "--in", in, "--out", filepath.Join(t.TempDir(), "g.safetensors"))
	assert.ErrorIs(t, err, synth.ErrShapeMismatch)
}

func TestGradcheck(t *testing.T) {
	out, err := run(t, "gradcheck", "--size", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "checked 64 weights on CPU")

	out, err = run(t, "gradcheck", "--kernel", "2", "--dilation", "2", "--size", "3", "--channels", "2", "--batch", "2", "--samples", "0", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "checked 72 weights")
}

func TestGradcheck_ReportsError(t *testing.T) {
	out, err := run(t, "gradcheck", "--size", "3", "--samples", "8")
	require.NoError(t, err)
	assert.Regexp(t, `checked 8 weights on CPU: max error \S+ \(tolerance 0\.001\)`, out)
}

func TestGradError(t *testing.T) {
	tests := []struct {
		analytic, numeric, want float64
	}{
		{0.5, 0.5005, 5e-4},
		{-0.25, 0.25, 0.5},
		{100, 100.1, 1e-3},
		{-4, -2, 0.5},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, gradError(tt.analytic, tt.numeric), 1e-9, "gradError(%v, %v)", tt.analytic, tt.numeric)
	}
}

func TestGradcheck_Invalid(t *testing.T) {
	_, err := run(t, "gradcheck", "--kernel", "0")
	assert.ErrorIs(t, err, synth.ErrKernelSize)

	_, err = run(t, "gradcheck", "--dilation", "0")
	assert.ErrorIs(t, err, synth.ErrDilation)

	_, err = run(t, "gradcheck", "--eps", "0")
	assert.Error(t, err)
}

func TestNewBackend_FallsBackToCPU(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("a WebGPU device may be present")
	}
	// runs after Setenv restores the environment
	t.Cleanup(envconfig.LoadConfig)
	t.Setenv("CHRONOSYNTH_BACKEND", "webgpu")
	envconfig.LoadConfig()

	b, release := newBackend()
	defer release()
	assert.Equal(t, "CPU", b.Name())
}

func TestForward_CorruptFile(t *testing.T) {
	in := writeFile(t, halfPixel(t))
	data, err := os.ReadFile(in)
	require.NoError(t, err)
	data[len(data)-1] ^= 0x01
	require.NoError(t, os.WriteFile(in, data, 0o600))

	_, err = run(t, "forward", "--in", in, "--out", filepath.Join(t.TempDir(), "out.safetensors"))
	assert.ErrorIs(t, err, serialization.ErrChecksumMismatch)
}
