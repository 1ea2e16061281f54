//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	// Auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")
	slog.Debug("webgpu pipeline created", "shader", name)

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline
}

// createBuffer creates a GPU buffer and uploads initial data.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer with proper alignment.
// Uniform buffers require 16-byte alignment for struct fields.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// readBuffer reads data back from a GPU buffer to CPU memory.
// Uses a pooled staging buffer since storage buffers can't be mapped directly.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingUsage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	stagingBuffer, stagingSize := b.pool.acquire(size, stagingUsage)
	defer b.pool.release(stagingBuffer, stagingSize, stagingUsage)

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size)
	if err != nil {
		return nil, fmt.Errorf("failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)

	stagingBuffer.Unmap()

	return result, nil
}

// kernel describes one compute launch: storage inputs are bound first, in
// order, then the result buffer, then the uniform params.
type kernel struct {
	name       string
	code       string
	inputs     [][]byte
	resultSize uint64
	params     []byte
	threads    int
}

// run executes k and returns the contents of its result buffer.
func (b *Backend) run(k kernel) ([]byte, error) {
	if k.resultSize == 0 || k.threads == 0 {
		return make([]byte, k.resultSize), nil
	}

	shader := b.compileShader(k.name, k.code)
	pipeline := b.getOrCreatePipeline(k.name, shader)

	entries := make([]wgpu.BindGroupEntry, 0, len(k.inputs)+2)
	for i, data := range k.inputs {
		buffer := b.createBuffer(data, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
		defer buffer.Release()
		//nolint:gosec // G115: binding index and size are non-negative
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), buffer, 0, uint64(len(data))))
	}

	resultUsage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	bufferResult, resultCap := b.pool.acquire(k.resultSize, resultUsage)
	defer b.pool.release(bufferResult, resultCap, resultUsage)
	//nolint:gosec // G115: binding index is small
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(k.inputs)), bufferResult, 0, k.resultSize))

	bufferParams := b.createUniformBuffer(k.params)
	defer bufferParams.Release()
	paramsSize := (uint64(len(k.params)) + 15) &^ 15
	//nolint:gosec // G115: binding index is small
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(k.inputs)+1), bufferParams, 0, paramsSize))

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)

	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	x, y := workgroups(k.threads)
	computePass.DispatchWorkgroups(x, y, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	return b.readBuffer(bufferResult, k.resultSize)
}

// workgroups splits ceil(threads / workgroupSize) groups over x and y so
// that neither dimension exceeds the per-dimension limit.
func workgroups(threads int) (x, y uint32) {
	groups := (threads + workgroupSize - 1) / workgroupSize
	if groups <= maxWorkgroupsPerDim {
		//nolint:gosec // G115: bounded by maxWorkgroupsPerDim
		return uint32(groups), 1
	}
	rows := (groups + maxWorkgroupsPerDim - 1) / maxWorkgroupsPerDim
	//nolint:gosec // G115: bounded by maxWorkgroupsPerDim
	return maxWorkgroupsPerDim, uint32(rows)
}

// packParams encodes u32 uniform fields little-endian.
func packParams(fields ...int) []byte {
	params := make([]byte, 4*len(fields))
	for i, f := range fields {
		//nolint:gosec // G115: dimensions are non-negative and fit in u32
		binary.LittleEndian.PutUint32(params[4*i:], uint32(f))
	}
	return params
}
