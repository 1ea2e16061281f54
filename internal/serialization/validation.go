package serialization

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// TensorMeta locates one tensor's bytes within the data section.
type TensorMeta struct {
	Name   string
	Offset int64
	Size   int64
}

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
// Malformed files must never make the reader touch bytes outside a tensor.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Err:     ErrNegativeOffset,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}

		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("range [%d, %d) exceeds data size %d", t.Offset, t.Offset+t.Size, dataSize),
			}
		}

		if i > 0 {
			prev := sorted[i-1]
			if prev.Offset+prev.Size > t.Offset {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Tensor:  prev.Name,
					Tensor2: t.Name,
					Details: fmt.Sprintf("[%d, %d) overlaps [%d, %d)",
						prev.Offset, prev.Offset+prev.Size, t.Offset, t.Offset+t.Size),
				}
			}
		}
	}

	return nil
}

// ValidateTensorName rejects empty, oversized and NUL-containing names.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Err: ErrInvalidName, Details: "empty name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Err:     ErrInvalidName,
			Tensor:  name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{
			Err:     ErrInvalidName,
			Tensor:  name,
			Details: "contains null byte",
		}
	}
	if name == metadataKey {
		return &ValidationError{
			Err:     ErrInvalidName,
			Tensor:  name,
			Details: "reserved for metadata",
		}
	}
	return nil
}

// ValidateHeader checks names, dtypes, byte sizes and offsets of every
// tensor in h against a data section of dataSize bytes.
func ValidateHeader(h *Header, dataSize int64) error {
	metas := make([]TensorMeta, 0, len(h.Tensors))
	for name, info := range h.Tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		if info.DType.Size() == 0 {
			return &ValidationError{
				Err:     ErrUnsupportedDType,
				Tensor:  name,
				Details: string(info.DType),
			}
		}

		elements := int64(1)
		for _, dim := range info.Shape {
			if dim < 0 {
				return &ValidationError{
					Err:     ErrSizeMismatch,
					Tensor:  name,
					Details: fmt.Sprintf("negative dimension in shape %v", info.Shape),
				}
			}
			if dim != 0 && elements > math.MaxInt64/int64(dim) {
				return &ValidationError{
					Err:     ErrSizeMismatch,
					Tensor:  name,
					Details: fmt.Sprintf("shape %v overflows", info.Shape),
				}
			}
			elements *= int64(dim)
		}
		if elements > math.MaxInt64/int64(info.DType.Size()) {
			return &ValidationError{
				Err:     ErrSizeMismatch,
				Tensor:  name,
				Details: fmt.Sprintf("%s%v overflows", info.DType, info.Shape),
			}
		}

		size := info.DataOffsets[1] - info.DataOffsets[0]
		if want := elements * int64(info.DType.Size()); size != want {
			return &ValidationError{
				Err:     ErrSizeMismatch,
				Tensor:  name,
				Details: fmt.Sprintf("%d bytes for %s%v, want %d", size, info.DType, info.Shape, want),
			}
		}

		metas = append(metas, TensorMeta{Name: name, Offset: info.DataOffsets[0], Size: size})
	}

	return ValidateTensorOffsets(metas, dataSize)
}
