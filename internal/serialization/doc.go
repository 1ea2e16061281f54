// Package serialization reads and writes tensor files in the SafeTensors
// format, the container the chronosynth CLI uses for frames, kernel
// weights, offsets and gradients.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON, space padded to a multiple of 8 bytes]
//	  [Tensor data: raw little-endian bytes]
//
// The header maps each tensor name to its dtype, shape and data offsets
// (relative to the start of the data section). An optional "__metadata__"
// entry holds string pairs; Write records the SHA-256 of the data section
// there, and Reader.Verify checks it.
//
// Open reads through the file handle; OpenMmap maps the file read-only and
// lets the OS page tensor payloads in on demand.
//
// Tensors load as float32. F16 and BF16 payloads are widened on read
// (github.com/x448/float16 and github.com/d4l3k/go-bfloat16); F64 is
// narrowed. Writers emit F32 unless WriteOptions.DType asks for F16 or BF16.
//
// Example usage:
//
//	err := serialization.Write("frames.safetensors", map[string]*tensor.RawTensor{
//	    "input": frame,
//	    "weight": weight,
//	}, nil, serialization.WriteOptions{})
//
//	r, err := serialization.Open("frames.safetensors")
//	defer r.Close()
//	weight, err := r.Load("weight")
package serialization
