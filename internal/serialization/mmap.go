package serialization

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// mappedFile releases a memory-mapped file.
type mappedFile struct {
	file *os.File
	data []byte
}

func (m *mappedFile) Close() error {
	if m.data == nil {
		return nil
	}
	err := munmapFile(m.data)
	m.data = nil
	return errors.Join(err, m.file.Close())
}

// OpenMmap opens a SafeTensors file through a read-only memory mapping.
// Only the header is parsed up front; tensor payloads are paged in by the
// OS as they are read.
//
// Important: Always call Close() when done to unmap the file (use defer).
func OpenMmap(path string) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for tensor files
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() < 8 {
		_ = file.Close()
		return nil, fmt.Errorf("%s: file too small: %d bytes", path, stat.Size())
	}

	// Memory map the file (platform-specific implementation)
	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	m := &mappedFile{file: file, data: data}

	r, err := NewReader(bytes.NewReader(data), stat.Size())
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = m
	return r, nil
}
