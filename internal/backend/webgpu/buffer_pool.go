//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// sizeClass buckets pooled buffers.
type sizeClass int

const (
	smallClass  sizeClass = iota // < 4KB
	mediumClass                  // 4KB - 1MB
	largeClass                   // > 1MB
)

const (
	smallThreshold  = 4 * 1024
	mediumThreshold = 1024 * 1024
	maxPoolSize     = 32 // per class
)

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
}

// bufferPool reuses result and staging buffers across launches. Buffers
// that are created mapped with initial data never enter the pool.
type bufferPool struct {
	device *wgpu.Device

	classes [3][]*pooledBuffer
	mu      sync.Mutex

	allocated, hits uint64
}

func newBufferPool(device *wgpu.Device) *bufferPool {
	return &bufferPool{device: device}
}

// acquire returns a buffer of at least size bytes with every usage bit set,
// and its actual size, which must be passed back to release.
func (p *bufferPool) acquire(size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classOf(size)
	for i, pb := range p.classes[class] {
		if pb.size >= size && pb.usage == usage {
			p.classes[class] = append(p.classes[class][:i], p.classes[class][i+1:]...)
			p.hits++
			return pb.buffer, pb.size
		}
	}

	p.allocated++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	}), size
}

// release hands a buffer back; it is destroyed when its class is full.
func (p *bufferPool) release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classOf(size)
	if len(p.classes[class]) >= maxPoolSize {
		buffer.Release()
		return
	}
	p.classes[class] = append(p.classes[class], &pooledBuffer{buffer: buffer, size: size, usage: usage})
}

// clear destroys every pooled buffer.
func (p *bufferPool) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class := range p.classes {
		for _, pb := range p.classes[class] {
			pb.buffer.Release()
		}
		p.classes[class] = nil
	}
}

func (p *bufferPool) stats() (allocated, hits uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.classes {
		pooled += len(c)
	}
	return p.allocated, p.hits, pooled
}

func classOf(size uint64) sizeClass {
	switch {
	case size < smallThreshold:
		return smallClass
	case size < mediumThreshold:
		return mediumClass
	default:
		return largeClass
	}
}
