package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/chronosynth/internal/tensor"
)

// WriteOptions controls how tensors are encoded.
type WriteOptions struct {
	// DType of the stored payloads: F32 (the default when empty), F16
	// or BF16.
	DType DType
}

// Write writes tensors to a SafeTensors file at path.
func Write(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string, opts WriteOptions) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for tensor files
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteTo(file, tensors, metadata, opts); err != nil {
		_ = file.Close() // Best effort close on error
		return err
	}
	return file.Close()
}

// WriteTo encodes tensors to w.
//
// Format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header, space padded to 8-byte alignment]
// [tensor data: raw bytes]
//
// Tensors are written in alphabetical order by name. The SHA-256 of the
// data section is stored in the metadata under ChecksumKey.
func WriteTo(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string, opts WriteOptions) error {
	dtype := opts.DType
	switch dtype {
	case "":
		dtype = F32
	case F32, F16, BF16:
	default:
		return fmt.Errorf("%w: cannot write %s", ErrUnsupportedDType, dtype)
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		Metadata: make(map[string]string, len(metadata)+1),
		Tensors:  make(map[string]TensorInfo, len(names)),
	}
	for k, v := range metadata {
		header.Metadata[k] = v
	}
	payloads := make([][]byte, len(names))
	digest := sha256.New()

	var currentOffset int64
	for i, name := range names {
		raw := tensors[name]
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%w: tensor %s is %s, want float32", ErrUnsupportedDType, name, raw.DType())
		}

		payload, err := encodeFloat32(dtype, raw.AsFloat32())
		if err != nil {
			return err
		}
		payloads[i] = payload
		digest.Write(payload)

		size := int64(len(payload))
		header.Tensors[name] = TensorInfo{
			DType:       dtype,
			Shape:       raw.Shape().Clone(),
			DataOffsets: [2]int64{currentOffset, currentOffset + size},
		}
		currentOffset += size
	}

	header.Metadata[ChecksumKey] = hex.EncodeToString(digest.Sum(nil))

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := (8 - len(headerJSON)%8) % 8; pad > 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, name := range names {
		if _, err := w.Write(payloads[i]); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}
