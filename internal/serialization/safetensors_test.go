package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/born-ml/chronosynth/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, shape tensor.Shape, data ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromFloat32(shape, data, tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestWriteOpen_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.safetensors")
	tensors := map[string]*tensor.RawTensor{
		"input":  raw(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4),
		"weight": raw(t, tensor.Shape{1, 1, 1, 1}, -0.25),
	}
	meta := map[string]string{"dilation": "2"}

	require.NoError(t, Write(path, tensors, meta, WriteOptions{}))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"input", "weight"}, r.Names())
	assert.Equal(t, "2", r.Metadata()["dilation"])
	assert.Contains(t, r.Metadata(), ChecksumKey)
	assert.NotContains(t, meta, ChecksumKey, "caller metadata must not be modified")
	assert.NoError(t, r.Verify())

	info, err := r.Info("input")
	require.NoError(t, err)
	assert.Equal(t, F32, info.DType)
	assert.Equal(t, []int{1, 1, 2, 2}, info.Shape)

	all, err := r.LoadAll()
	require.NoError(t, err)
	for name, want := range tensors {
		require.Contains(t, all, name)
		assert.Equal(t, want.Shape(), all[name].Shape())
		assert.Equal(t, want.AsFloat32(), all[name].AsFloat32())
	}
}

func TestWriteTo_HeaderAlignment(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTo(&buf, map[string]*tensor.RawTensor{"x": raw(t, tensor.Shape{3}, 1, 2, 3)}, nil, WriteOptions{})
	require.NoError(t, err)

	headerSize := binary.LittleEndian.Uint64(buf.Bytes()[:8])
	assert.Zero(t, headerSize%8)
	assert.Equal(t, int(8+headerSize+12), buf.Len())

	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes()[8:8+headerSize], &header))
	require.Contains(t, header, metadataKey)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(header[metadataKey], &meta))
	assert.Equal(t, ComputeChecksum(buf.Bytes()[8+headerSize:]), meta[ChecksumKey])
}

func TestVerify_DetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTo(&buf, map[string]*tensor.RawTensor{"x": raw(t, tensor.Shape{2}, 1, 2)}, nil, WriteOptions{})
	require.NoError(t, err)

	file := buf.Bytes()
	r, err := NewReader(bytes.NewReader(file), int64(len(file)))
	require.NoError(t, err)
	require.NoError(t, r.Verify())

	file[len(file)-1] ^= 0xff
	assert.ErrorIs(t, r.Verify(), ErrChecksumMismatch)
}

func TestVerify_WithoutChecksum(t *testing.T) {
	file := build(t, map[string]any{
		"x": map[string]any{"dtype": "F32", "shape": []int{1}, "data_offsets": []int{0, 4}},
	}, make([]byte, 4))
	r, err := NewReader(bytes.NewReader(file), int64(len(file)))
	require.NoError(t, err)
	assert.NoError(t, r.Verify())
}

func TestComputeChecksumReader(t *testing.T) {
	data := []byte("chronosynth")
	sum, err := ComputeChecksumReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ComputeChecksum(data), sum)
	assert.Len(t, sum, 64)
}

func TestWriteTo_Half(t *testing.T) {
	var buf bytes.Buffer
	values := []float32{0, 1, -2, 0.5, 65504}
	err := WriteTo(&buf, map[string]*tensor.RawTensor{"x": raw(t, tensor.Shape{5}, values...)}, nil, WriteOptions{DType: F16})
	require.NoError(t, err)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	info, err := r.Info("x")
	require.NoError(t, err)
	assert.Equal(t, F16, info.DType)
	assert.Equal(t, [2]int64{0, 10}, info.DataOffsets)

	x, err := r.Load("x")
	require.NoError(t, err)
	assert.Equal(t, values, x.AsFloat32())
}

func TestWriteTo_BFloat16(t *testing.T) {
	var buf bytes.Buffer
	values := []float32{1.5, -3, 0.25, 1.0078125}
	err := WriteTo(&buf, map[string]*tensor.RawTensor{"x": raw(t, tensor.Shape{4}, values...)}, nil, WriteOptions{DType: BF16})
	require.NoError(t, err)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	info, err := r.Info("x")
	require.NoError(t, err)
	assert.Equal(t, BF16, info.DType)

	x, err := r.Load("x")
	require.NoError(t, err)
	assert.Equal(t, values, x.AsFloat32())
}

func TestWriteTo_RejectsF64Payloads(t *testing.T) {
	err := WriteTo(&bytes.Buffer{}, map[string]*tensor.RawTensor{"x": raw(t, tensor.Shape{1}, 1)}, nil, WriteOptions{DType: F64})
	assert.ErrorIs(t, err, ErrUnsupportedDType)
}

// build assembles a file from a literal header and payload.
func build(t *testing.T, header map[string]any, payload []byte) []byte {
	t.Helper()
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON))))
	buf.Write(headerJSON)
	buf.Write(payload)
	return buf.Bytes()
}

func TestLoad_WidensBF16AndNarrowsF64(t *testing.T) {
	payload := make([]byte, 4+16)
	binary.LittleEndian.PutUint16(payload[0:], uint16(math.Float32bits(1.5)>>16))
	binary.LittleEndian.PutUint16(payload[2:], uint16(math.Float32bits(-3)>>16))
	binary.LittleEndian.PutUint64(payload[4:], math.Float64bits(0.25))
	binary.LittleEndian.PutUint64(payload[12:], math.Float64bits(-8))

	file := build(t, map[string]any{
		"b": map[string]any{"dtype": "BF16", "shape": []int{2}, "data_offsets": []int{0, 4}},
		"d": map[string]any{"dtype": "F64", "shape": []int{2}, "data_offsets": []int{4, 20}},
	}, payload)

	r, err := NewReader(bytes.NewReader(file), int64(len(file)))
	require.NoError(t, err)

	b, err := r.Load("b")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -3}, b.AsFloat32())

	d, err := r.Load("d")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -8}, d.AsFloat32())
}

func TestNewReader_Errors(t *testing.T) {
	t.Run("truncated data", func(t *testing.T) {
		file := build(t, map[string]any{
			"x": map[string]any{"dtype": "F32", "shape": []int{4}, "data_offsets": []int{0, 16}},
		}, make([]byte, 8))
		_, err := NewReader(bytes.NewReader(file), int64(len(file)))
		assert.ErrorIs(t, err, ErrOutOfBounds)
	})

	t.Run("overlap", func(t *testing.T) {
		file := build(t, map[string]any{
			"x": map[string]any{"dtype": "F32", "shape": []int{2}, "data_offsets": []int{0, 8}},
			"y": map[string]any{"dtype": "F32", "shape": []int{2}, "data_offsets": []int{4, 12}},
		}, make([]byte, 12))
		_, err := NewReader(bytes.NewReader(file), int64(len(file)))
		assert.ErrorIs(t, err, ErrOffsetOverlap)
	})

	t.Run("shape overflow", func(t *testing.T) {
		file := build(t, map[string]any{
			"x": map[string]any{"dtype": "F32", "shape": []int{65536, 65536, 65536, 65536}, "data_offsets": []int{0, 0}},
		}, nil)
		_, err := NewReader(bytes.NewReader(file), int64(len(file)))
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("header too large", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(MaxHeaderSize+1)))
		_, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		assert.ErrorIs(t, err, ErrHeaderTooLarge)
	})

	t.Run("header beyond file", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(64)))
		buf.WriteString("{}")
		_, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		assert.ErrorIs(t, err, ErrOutOfBounds)
	})

	t.Run("bad json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(3)))
		buf.WriteString("{x}")
		_, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		assert.Error(t, err)
	})
}

func TestReader_MissingTensor(t *testing.T) {
	file := build(t, map[string]any{}, nil)
	r, err := NewReader(bytes.NewReader(file), int64(len(file)))
	require.NoError(t, err)

	_, err = r.Load("weight")
	assert.ErrorIs(t, err, ErrTensorNotFound)
	assert.Empty(t, r.Names())
	assert.NoError(t, r.Close())
}

func TestWriteTo_RejectsFloat64(t *testing.T) {
	x, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)

	err = WriteTo(&bytes.Buffer{}, map[string]*tensor.RawTensor{"x": x}, nil, WriteOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedDType)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.safetensors"))
	assert.Error(t, err)
}

func TestOpenMmap(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		t.Skip("memory mapping not exercised on " + runtime.GOOS)
	}

	path := filepath.Join(t.TempDir(), "frames.safetensors")
	x := raw(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4)
	require.NoError(t, Write(path, map[string]*tensor.RawTensor{"x": x}, nil, WriteOptions{}))

	r, err := OpenMmap(path)
	require.NoError(t, err)

	got, err := r.Load("x")
	require.NoError(t, err)
	assert.Equal(t, x.AsFloat32(), got.AsFloat32())
	assert.NoError(t, r.Verify())

	require.NoError(t, r.Close())
	assert.NoError(t, r.Close(), "second Close is a no-op")
}

func TestOpenMmap_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenMmap(filepath.Join(dir, "absent.safetensors"))
	assert.Error(t, err)

	tiny := filepath.Join(dir, "tiny.safetensors")
	require.NoError(t, os.WriteFile(tiny, []byte{1, 2}, 0o600))
	_, err = OpenMmap(tiny)
	assert.Error(t, err)
}
