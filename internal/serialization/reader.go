package serialization

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/chronosynth/internal/tensor"
)

// Reader reads tensors from a SafeTensors file.
// The header is parsed and validated once; tensor data is read on demand.
type Reader struct {
	src        io.ReaderAt
	closer     io.Closer
	header     Header
	dataOffset int64 // Offset where tensor data starts
	dataSize   int64
}

// Open opens and validates a SafeTensors file.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for tensor files
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	r, err := NewReader(file, info.Size())
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = file
	return r, nil
}

// NewReader parses the header of a SafeTensors stream of the given size.
func NewReader(src io.ReaderAt, size int64) (*Reader, error) {
	var prefix [8]byte
	if _, err := src.ReadAt(prefix[:], 0); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}

	headerSize := binary.LittleEndian.Uint64(prefix[:])
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	//nolint:gosec // G115: bounded by MaxHeaderSize
	dataOffset := int64(8 + headerSize)
	if dataOffset > size {
		return nil, fmt.Errorf("%w: header of %d bytes in a %d byte file", ErrOutOfBounds, headerSize, size)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := src.ReadAt(headerBytes, 8); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&header, size-dataOffset); err != nil {
		return nil, err
	}

	return &Reader{
		src:        src,
		header:     header,
		dataOffset: dataOffset,
		dataSize:   size - dataOffset,
	}, nil
}

// Close closes the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// Names returns all tensor names in sorted order.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns information about a specific tensor.
func (r *Reader) Info(name string) (TensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return TensorInfo{}, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
	}
	return info, nil
}

// ReadData reads the raw payload bytes of a tensor.
func (r *Reader) ReadData(name string) ([]byte, error) {
	info, err := r.Info(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := r.src.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}
	return data, nil
}

// Load reads a tensor as float32 on the CPU device.
func (r *Reader) Load(name string) (*tensor.RawTensor, error) {
	info, err := r.Info(name)
	if err != nil {
		return nil, err
	}

	data, err := r.ReadData(name)
	if err != nil {
		return nil, err
	}

	raw, err := tensor.NewRaw(tensor.Shape(info.Shape), tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor %s: %w", name, err)
	}
	if err := decodeFloat32(info.DType, data, raw.AsFloat32()); err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// LoadAll reads every tensor in the file.
func (r *Reader) LoadAll() (map[string]*tensor.RawTensor, error) {
	out := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, name := range r.Names() {
		raw, err := r.Load(name)
		if err != nil {
			return nil, err
		}
		out[name] = raw
	}
	return out, nil
}
