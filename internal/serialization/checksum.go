package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// ChecksumKey is the metadata entry holding the hex SHA-256 of the data
// section. Write always sets it.
const ChecksumKey = "sha256"

// ComputeChecksum computes the hex SHA-256 checksum of data.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeChecksumReader computes the hex SHA-256 checksum from an io.Reader
// without loading it into memory.
func ComputeChecksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes the data section checksum and compares it with the
// stored one. Files without a checksum verify trivially.
func (r *Reader) Verify() error {
	stored, ok := r.header.Metadata[ChecksumKey]
	if !ok {
		return nil
	}

	computed, err := ComputeChecksumReader(io.NewSectionReader(r.src, r.dataOffset, r.dataSize))
	if err != nil {
		return fmt.Errorf("failed to read data section: %w", err)
	}
	if computed != stored {
		return fmt.Errorf("%w: stored %s, computed %s", ErrChecksumMismatch, stored, computed)
	}
	return nil
}
